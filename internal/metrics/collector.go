// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 信任指标
	trustScore          *prometheus.GaugeVec
	trustLevel          *prometheus.GaugeVec
	promotionsTotal     *prometheus.CounterVec
	demotionsTotal      *prometheus.CounterVec
	anomaliesTotal      *prometheus.CounterVec
	actionsTrackedTotal *prometheus.CounterVec

	// 审批指标
	approvalRequestsTotal *prometheus.CounterVec
	approvalsPending      prometheus.Gauge
	approvalWaitDuration  prometheus.Histogram

	// 协调器指标
	tasksTotal             *prometheus.CounterVec
	tasksActive            prometheus.Gauge
	taskAssignmentDuration prometheus.Histogram
	deadlocksTotal         prometheus.Counter

	// 会话/决策指标
	decisionsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 信任指标
	c.trustScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trust_score",
			Help:      "Current composite trust score per subject (0-100)",
		},
		[]string{"subject_id"},
	)

	c.trustLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trust_level",
			Help:      "Current trust level per subject (0=observed .. 3=autonomous)",
		},
		[]string{"subject_id"},
	)

	c.promotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_promotions_total",
			Help:      "Total number of trust level promotions",
		},
		[]string{"to_level", "override"},
	)

	c.demotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_demotions_total",
			Help:      "Total number of trust level demotions",
		},
		[]string{"severity"},
	)

	c.anomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_anomalies_total",
			Help:      "Total number of behavioral anomalies detected",
		},
		[]string{"detector"},
	)

	c.actionsTrackedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_actions_tracked_total",
			Help:      "Total number of tracked agent actions",
		},
		[]string{"action_type", "approved"},
	)

	// 审批指标
	c.approvalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_requests_total",
			Help:      "Total number of approval requests by terminal outcome",
		},
		[]string{"outcome"},
	)

	c.approvalsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "approvals_pending",
			Help:      "Number of approval requests currently pending",
		},
	)

	c.approvalWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "approval_wait_duration_seconds",
			Help:      "Time from approval request creation to terminal state",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
	)

	// 协调器指标
	c.tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of coordinated tasks by terminal status",
		},
		[]string{"status"},
	)

	c.tasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_active",
			Help:      "Number of tasks currently queued or running",
		},
	)

	c.taskAssignmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_assignment_duration_seconds",
			Help:      "Time from task submission to assignment",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
	)

	c.deadlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadlocks_detected_total",
			Help:      "Total number of dependency cycles broken by the scheduler",
		},
	)

	// 决策指标
	c.decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of recorded decisions by status",
		},
		[]string{"status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 信任指标记录
// =============================================================================

// SetTrustScore 记录主体当前综合得分
func (c *Collector) SetTrustScore(subjectID string, score float64) {
	c.trustScore.WithLabelValues(subjectID).Set(score)
}

// SetTrustLevel 记录主体当前信任等级
func (c *Collector) SetTrustLevel(subjectID string, level int) {
	c.trustLevel.WithLabelValues(subjectID).Set(float64(level))
}

// RecordPromotion 记录一次晋升
func (c *Collector) RecordPromotion(toLevel string, override bool) {
	c.promotionsTotal.WithLabelValues(toLevel, boolLabel(override)).Inc()
}

// RecordDemotion 记录一次降级
func (c *Collector) RecordDemotion(severity string) {
	c.demotionsTotal.WithLabelValues(severity).Inc()
}

// RecordAnomaly 记录一次异常检测
func (c *Collector) RecordAnomaly(detector string) {
	c.anomaliesTotal.WithLabelValues(detector).Inc()
}

// RecordActionTracked 记录一次被追踪的动作
func (c *Collector) RecordActionTracked(actionType string, approved bool) {
	c.actionsTrackedTotal.WithLabelValues(actionType, boolLabel(approved)).Inc()
}

// =============================================================================
// ✅ 审批指标记录
// =============================================================================

// RecordApprovalOutcome 记录审批请求的终态
func (c *Collector) RecordApprovalOutcome(outcome string, waited time.Duration) {
	c.approvalRequestsTotal.WithLabelValues(outcome).Inc()
	c.approvalWaitDuration.Observe(waited.Seconds())
}

// SetApprovalsPending 更新待审批数量
func (c *Collector) SetApprovalsPending(n int) {
	c.approvalsPending.Set(float64(n))
}

// =============================================================================
// 🧭 协调器指标记录
// =============================================================================

// RecordTaskOutcome 记录任务终态
func (c *Collector) RecordTaskOutcome(status string) {
	c.tasksTotal.WithLabelValues(status).Inc()
}

// SetTasksActive 更新活跃任务数
func (c *Collector) SetTasksActive(n int) {
	c.tasksActive.Set(float64(n))
}

// RecordTaskAssignment 记录从提交到分配的耗时
func (c *Collector) RecordTaskAssignment(waited time.Duration) {
	c.taskAssignmentDuration.Observe(waited.Seconds())
}

// RecordDeadlock 记录一次死锁打破
func (c *Collector) RecordDeadlock() {
	c.deadlocksTotal.Inc()
}

// RecordDecision 记录一次决策状态变化
func (c *Collector) RecordDecision(status string) {
	c.decisionsTotal.WithLabelValues(status).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
