// Package database 提供数据库连接池管理。
// 该包为内部包，不应被外部项目导入。
package database
