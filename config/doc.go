// Package config 提供 TrustFlow 的统一配置：晋升门槛、审批工作流、
// 任务协调器、存储与日志配置，以及 YAML + 环境变量加载器。
package config
