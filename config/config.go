package config

import (
	"fmt"
	"time"

	"github.com/BaSui01/trustflow/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 TrustFlow 的完整配置结构
type Config struct {
	// Trust 信任进阶引擎配置
	Trust TrustConfig `yaml:"trust" env:"TRUST"`

	// Approval 审批工作流配置
	Approval ApprovalConfig `yaml:"approval" env:"APPROVAL"`

	// Coordinator 任务协调器配置
	Coordinator CoordinatorConfig `yaml:"coordinator" env:"COORDINATOR"`

	// Redis 缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// TrustConfig 信任进阶引擎配置
type TrustConfig struct {
	// 行为指标滚动窗口容量
	MetricWindowSize int `yaml:"metric_window_size" env:"METRIC_WINDOW_SIZE"`
	// 活跃窗口（超过后得分开始时间衰减）
	ActivityWindow time.Duration `yaml:"activity_window" env:"ACTIVITY_WINDOW"`
	// 异常次数阈值（窗口期内达到则自动降级）
	AnomalyThreshold int `yaml:"anomaly_threshold" env:"ANOMALY_THRESHOLD"`
	// 异常统计窗口
	AnomalyWindow time.Duration `yaml:"anomaly_window" env:"ANOMALY_WINDOW"`
	// 违规回溯窗口（晋升前检查）
	ViolationWindow time.Duration `yaml:"violation_window" env:"VIOLATION_WINDOW"`
	// Promotion 各级晋升门槛（L1/L2/L3）
	Promotion map[string]PromotionThresholds `yaml:"promotion" env:"-"`
}

// PromotionThresholds 单个目标等级的晋升门槛
type PromotionThresholds struct {
	// 最低综合得分（0-100）
	MinScore float64 `yaml:"min_score" env:"MIN_SCORE"`
	// 最少历史动作数
	MinActions int `yaml:"min_actions" env:"MIN_ACTIONS"`
	// 最少账户活跃天数
	MinDaysActive int `yaml:"min_days_active" env:"MIN_DAYS_ACTIVE"`
	// 最低批准率（0-1）
	MinApprovalRate float64 `yaml:"min_approval_rate" env:"MIN_APPROVAL_RATE"`
	// 晋升冷却天数
	CooldownDays int `yaml:"cooldown_days" env:"COOLDOWN_DAYS"`
}

// ThresholdsFor 返回目标等级的晋升门槛
func (c TrustConfig) ThresholdsFor(level types.TrustLevel) (PromotionThresholds, bool) {
	t, ok := c.Promotion[level.String()]
	return t, ok
}

// ApprovalConfig 审批工作流配置
type ApprovalConfig struct {
	// 待审批请求数量上限
	MaxPendingRequests int `yaml:"max_pending_requests" env:"MAX_PENDING_REQUESTS"`
	// 默认审批超时
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
	// 每秒允许创建的请求数（0 表示不限流）
	CreateRateLimit float64 `yaml:"create_rate_limit" env:"CREATE_RATE_LIMIT"`
	// 存储后端: memory, redis
	Store string `yaml:"store" env:"STORE"`
}

// CoordinatorConfig 任务协调器配置
type CoordinatorConfig struct {
	// 单个 Agent 并发任务上限
	MaxConcurrentTasksPerAgent int `yaml:"max_concurrent_tasks_per_agent" env:"MAX_CONCURRENT_TASKS_PER_AGENT"`
	// 任务墙钟超时
	TaskTimeout time.Duration `yaml:"task_timeout" env:"TASK_TIMEOUT"`
	// 调度循环间隔
	SchedulerTickInterval time.Duration `yaml:"scheduler_tick_interval" env:"SCHEDULER_TICK_INTERVAL"`
	// Agent 最低可用度（低于该值不参与分配）
	MinAvailability float64 `yaml:"min_availability" env:"MIN_AVAILABILITY"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 是否启用 TLS
	TLS bool `yaml:"tls" env:"TLS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Prometheus 命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// 监听地址（/metrics）
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
}

// =============================================================================
// ✅ 默认值
// =============================================================================

// DefaultConfig 返回完整默认配置
func DefaultConfig() *Config {
	return &Config{
		Trust:       DefaultTrustConfig(),
		Approval:    DefaultApprovalConfig(),
		Coordinator: DefaultCoordinatorConfig(),
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "trustflow:",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Name:            "trustflow.db",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			OutputPaths:  []string{"stdout"},
			EnableCaller: true,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			Namespace:  "trustflow",
			ListenAddr: ":9090",
		},
	}
}

// DefaultTrustConfig 返回默认的信任进阶配置
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		MetricWindowSize: 10000,
		ActivityWindow:   90 * 24 * time.Hour,
		AnomalyThreshold: 3,
		AnomalyWindow:    7 * 24 * time.Hour,
		ViolationWindow:  30 * 24 * time.Hour,
		Promotion: map[string]PromotionThresholds{
			types.TrustLevelAssisted.String(): {
				MinScore:        70,
				MinActions:      100,
				MinDaysActive:   30,
				MinApprovalRate: 0.90,
				CooldownDays:    14,
			},
			types.TrustLevelSupervised.String(): {
				MinScore:        80,
				MinActions:      500,
				MinDaysActive:   90,
				MinApprovalRate: 0.95,
				CooldownDays:    30,
			},
			types.TrustLevelAutonomous.String(): {
				MinScore:        90,
				MinActions:      2000,
				MinDaysActive:   180,
				MinApprovalRate: 0.98,
				CooldownDays:    60,
			},
		},
	}
}

// DefaultApprovalConfig 返回默认的审批配置
func DefaultApprovalConfig() ApprovalConfig {
	return ApprovalConfig{
		MaxPendingRequests: 10,
		DefaultTimeout:     30 * time.Minute,
		CreateRateLimit:    0,
		Store:              "memory",
	}
}

// DefaultCoordinatorConfig 返回默认的协调器配置
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		MaxConcurrentTasksPerAgent: 5,
		TaskTimeout:                time.Hour,
		SchedulerTickInterval:      time.Second,
		MinAvailability:            0.2,
	}
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Approval.MaxPendingRequests <= 0 {
		return fmt.Errorf("approval.max_pending_requests must be > 0")
	}
	if c.Approval.DefaultTimeout <= 0 {
		return fmt.Errorf("approval.default_timeout must be > 0")
	}
	if c.Coordinator.MaxConcurrentTasksPerAgent <= 0 {
		return fmt.Errorf("coordinator.max_concurrent_tasks_per_agent must be > 0")
	}
	if c.Coordinator.SchedulerTickInterval <= 0 {
		return fmt.Errorf("coordinator.scheduler_tick_interval must be > 0")
	}
	if c.Trust.MetricWindowSize <= 0 {
		return fmt.Errorf("trust.metric_window_size must be > 0")
	}
	for level, t := range c.Trust.Promotion {
		if t.MinScore < 0 || t.MinScore > 100 {
			return fmt.Errorf("trust.promotion[%s].min_score must be within [0,100]", level)
		}
		if t.MinApprovalRate < 0 || t.MinApprovalRate > 1 {
			return fmt.Errorf("trust.promotion[%s].min_approval_rate must be within [0,1]", level)
		}
	}
	return nil
}
