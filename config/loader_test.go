package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/trustflow/types"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Approval.MaxPendingRequests)
	assert.Equal(t, 30*time.Minute, cfg.Approval.DefaultTimeout)
	assert.Equal(t, 5, cfg.Coordinator.MaxConcurrentTasksPerAgent)
	assert.Equal(t, time.Hour, cfg.Coordinator.TaskTimeout)
	assert.Equal(t, time.Second, cfg.Coordinator.SchedulerTickInterval)
	assert.Equal(t, 10000, cfg.Trust.MetricWindowSize)
	require.NoError(t, cfg.Validate())
}

func TestDefaultTrustConfig_ThresholdsPerLevel(t *testing.T) {
	t.Parallel()
	cfg := DefaultTrustConfig()

	l1, ok := cfg.ThresholdsFor(types.TrustLevelAssisted)
	require.True(t, ok)
	assert.Equal(t, 100, l1.MinActions)
	assert.Equal(t, 0.90, l1.MinApprovalRate)

	l3, ok := cfg.ThresholdsFor(types.TrustLevelAutonomous)
	require.True(t, ok)
	assert.Equal(t, 90.0, l3.MinScore)

	// L0 有意没有门槛：它是起始等级
	_, ok = cfg.ThresholdsFor(types.TrustLevelObserved)
	assert.False(t, ok)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
approval:
  max_pending_requests: 25
  default_timeout: 5m
coordinator:
  task_timeout: 2h
  scheduler_tick_interval: 500ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Approval.MaxPendingRequests)
	assert.Equal(t, 5*time.Minute, cfg.Approval.DefaultTimeout)
	assert.Equal(t, 2*time.Hour, cfg.Coordinator.TaskTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Coordinator.SchedulerTickInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未覆盖的字段保留默认值
	assert.Equal(t, 5, cfg.Coordinator.MaxConcurrentTasksPerAgent)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	t.Setenv("TRUSTFLOW_APPROVAL_MAX_PENDING_REQUESTS", "3")
	t.Setenv("TRUSTFLOW_COORDINATOR_TASK_TIMEOUT", "90m")
	t.Setenv("TRUSTFLOW_LOG_OUTPUT_PATHS", "stdout, /var/log/trustflow.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Approval.MaxPendingRequests)
	assert.Equal(t, 90*time.Minute, cfg.Coordinator.TaskTimeout)
	assert.Equal(t, []string{"stdout", "/var/log/trustflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Approval.MaxPendingRequests)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("TRUSTFLOW_APPROVAL_MAX_PENDING_REQUESTS", "lots")
	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestConfig_ValidateRejectsBadThresholds(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Trust.Promotion[types.TrustLevelAssisted.String()] = PromotionThresholds{
		MinScore:        140,
		MinApprovalRate: 0.9,
	}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Approval.MaxPendingRequests = 0
	assert.Error(t, cfg.Validate())
}

func TestLoader_CustomValidator(t *testing.T) {
	t.Parallel()
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			return assert.AnError
		}).
		Load()
	assert.Error(t, err)
}
