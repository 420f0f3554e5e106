package trust

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/trustflow/config"
	"github.com/BaSui01/trustflow/internal/clock"
	"github.com/BaSui01/trustflow/internal/metrics"
	"github.com/BaSui01/trustflow/notify"
	"github.com/BaSui01/trustflow/types"
)

// Action is one observed agent action fed into the engine.
type Action struct {
	// Type names the kind of action, e.g. "code_gen".
	Type string
	// Approved reports whether a human (or policy) approved the outcome.
	Approved bool
	// Successful reports execution outcome; nil when the action has no
	// success semantics (e.g. a read).
	Successful *bool
	// Complexity grades the action difficulty in [0,1].
	Complexity float64
	// ExecutionTime is how long the agent took to decide/execute.
	ExecutionTime time.Duration
}

// LevelChange is the audit record of one promotion or demotion.
type LevelChange struct {
	SubjectID    string           `json:"subject_id"`
	From         types.TrustLevel `json:"from"`
	To           types.TrustLevel `json:"to"`
	Reason       string           `json:"reason"`
	AuthorizedBy string           `json:"authorized_by,omitempty"`
	Severity     types.Severity   `json:"severity,omitempty"`
	Override     bool             `json:"override,omitempty"`
	At           time.Time        `json:"at"`
}

// Eligibility is the outcome of a promotion eligibility check. When not
// eligible, Reasons lists every unmet condition, not just the first.
type Eligibility struct {
	Eligible  bool             `json:"eligible"`
	NextLevel types.TrustLevel `json:"next_level"`
	Reasons   []string         `json:"reasons"`
}

type violation struct {
	reason   string
	severity types.Severity
	at       time.Time
}

// subjectState is everything the engine tracks per subject. Mutated only
// under the engine mutex.
type subjectState struct {
	id            string
	level         types.TrustLevel
	createdAt     time.Time
	window        *MetricWindow
	totalActions  int
	lastPromotion time.Time
	violations    []violation
	anomalies     []anomalyRecord
	history       []LevelChange
}

// Engine is the trust progression engine. All state is owned by the instance
// and guarded by one mutex; construct with injected configuration, clock,
// and collaborators for deterministic tests.
type Engine struct {
	mu sync.Mutex

	cfg       config.TrustConfig
	clk       clock.Clock
	calc      *Calculator
	detectors []AnomalyDetector
	notifier  notify.Notifier
	collector *metrics.Collector
	logger    *zap.Logger

	subjects map[string]*subjectState
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock injects a clock (tests use a fake).
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clk = c }
}

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) EngineOption {
	return func(e *Engine) { e.collector = c }
}

// WithDetectors replaces the default anomaly detector set.
func WithDetectors(ds ...AnomalyDetector) EngineOption {
	return func(e *Engine) { e.detectors = ds }
}

// NewEngine creates a trust progression engine.
func NewEngine(cfg config.TrustConfig, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		clk:      clock.NewReal(),
		calc:     NewCalculator(cfg.ActivityWindow),
		notifier: notify.NopNotifier{},
		logger:   logger.With(zap.String("component", "trust_engine")),
		subjects: make(map[string]*subjectState),
		detectors: []AnomalyDetector{
			&DecisionLatencyDetector{},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterSubject creates tracking state for a subject at trust level L0.
// Registering an existing subject is a no-op.
func (e *Engine) RegisterSubject(subjectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureSubject(subjectID)
}

// ensureSubject returns the subject state, creating it at L0 on first use.
// Caller must hold e.mu.
func (e *Engine) ensureSubject(subjectID string) *subjectState {
	s, ok := e.subjects[subjectID]
	if !ok {
		s = &subjectState{
			id:        subjectID,
			level:     types.TrustLevelObserved,
			createdAt: e.clk.Now(),
			window:    NewMetricWindow(e.cfg.MetricWindowSize),
		}
		e.subjects[subjectID] = s
		e.logger.Info("subject registered",
			zap.String("subject_id", subjectID),
			zap.String("level", s.level.String()),
		)
	}
	return s
}

// TrackAction records one observed action: it appends behavioral metrics to
// the subject's rolling window, runs anomaly detectors, and may trigger an
// automatic safety demotion.
func (e *Engine) TrackAction(subjectID string, action Action) error {
	if action.Type == "" {
		return types.NewError(types.ErrValidation, "action type is required")
	}
	if action.Complexity < 0 || action.Complexity > 1 {
		return types.NewErrorf(types.ErrValidation, "complexity %v outside [0,1]", action.Complexity)
	}

	e.mu.Lock()
	s := e.ensureSubject(subjectID)
	now := e.clk.Now()
	s.totalActions++

	// Metrics from one tracked action share a timestamp and action type;
	// the calculator pairs complexity with success outcome through them.
	s.window.Append(types.BehaviorMetric{
		Type:       types.MetricApprovalRate,
		Value:      boolValue(action.Approved),
		ActionType: action.Type,
		Weight:     1,
		Timestamp:  now,
	})
	if action.Successful != nil {
		s.window.Append(types.BehaviorMetric{
			Type:       types.MetricSuccessRate,
			Value:      boolValue(*action.Successful),
			ActionType: action.Type,
			Weight:     1,
			Timestamp:  now,
		})
	}
	if action.Complexity > 0 {
		s.window.Append(types.BehaviorMetric{
			Type:       types.MetricComplexity,
			Value:      action.Complexity,
			ActionType: action.Type,
			Weight:     1,
			Timestamp:  now,
		})
	}
	if action.ExecutionTime > 0 {
		s.window.Append(types.BehaviorMetric{
			Type:       types.MetricResponseTime,
			Value:      float64(action.ExecutionTime.Milliseconds()),
			ActionType: action.Type,
			Weight:     1,
			Timestamp:  now,
		})
	}

	anomalous := e.runDetectorsLocked(s, action, now)
	e.mu.Unlock()

	if e.collector != nil {
		e.collector.RecordActionTracked(action.Type, action.Approved)
	}
	if anomalous {
		// Demotion happens outside the hot path lock section above;
		// autoDemote re-acquires the mutex.
		e.autoDemoteOnAnomalies(subjectID)
	}
	return nil
}

// runDetectorsLocked runs every detector against the action and records hits.
// Returns true when the anomaly count within the window reached the
// auto-demotion threshold. Caller must hold e.mu.
func (e *Engine) runDetectorsLocked(s *subjectState, action Action, now time.Time) bool {
	hit := false
	for _, d := range e.detectors {
		ok, detail := d.Check(action)
		if !ok {
			continue
		}
		hit = true
		s.anomalies = append(s.anomalies, anomalyRecord{detector: d.Name(), detail: detail, at: now})
		e.logger.Warn("behavioral anomaly detected",
			zap.String("subject_id", s.id),
			zap.String("detector", d.Name()),
			zap.String("detail", detail),
		)
		if e.collector != nil {
			e.collector.RecordAnomaly(d.Name())
		}
		e.notifier.Notify(&notify.AnomalyDetected{
			SubjectID:  s.id,
			Detector:   d.Name(),
			Detail:     detail,
			Timestamp_: now,
		})
	}
	if !hit {
		return false
	}
	s.anomalies = pruneAnomalies(s.anomalies, now, e.cfg.AnomalyWindow)
	return len(s.anomalies) >= e.cfg.AnomalyThreshold
}

// autoDemoteOnAnomalies applies the medium safety demotion once the anomaly
// threshold is reached, then clears the anomaly tally so a single burst does
// not demote repeatedly.
func (e *Engine) autoDemoteOnAnomalies(subjectID string) {
	e.mu.Lock()
	s, ok := e.subjects[subjectID]
	if !ok || len(s.anomalies) < e.cfg.AnomalyThreshold {
		e.mu.Unlock()
		return
	}
	reason := fmt.Sprintf("%d anomalies within %s", len(s.anomalies), e.cfg.AnomalyWindow)
	s.anomalies = s.anomalies[:0]
	e.mu.Unlock()

	if _, err := e.DemoteTrustLevel(subjectID, reason, types.SeverityMedium, "system"); err != nil {
		e.logger.Error("automatic anomaly demotion failed",
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}
}

// CalculateTrustScore recomputes the composite score from the subject's
// metric window. The score is derived, never stored.
func (e *Engine) CalculateTrustScore(subjectID string) (types.TrustScore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.subjects[subjectID]
	if !ok {
		return types.TrustScore{}, types.NewErrorf(types.ErrNotFound, "subject %s not registered", subjectID)
	}

	score := e.calc.Calculate(s.window, e.clk.Now())
	if e.collector != nil {
		e.collector.SetTrustScore(subjectID, score.Overall)
	}
	return score, nil
}

// Level returns the subject's current trust level.
func (e *Engine) Level(subjectID string) (types.TrustLevel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.subjects[subjectID]
	if !ok {
		return 0, types.NewErrorf(types.ErrNotFound, "subject %s not registered", subjectID)
	}
	return s.level, nil
}

// History returns the subject's promotion/demotion audit trail, oldest first.
func (e *Engine) History(subjectID string) ([]LevelChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.subjects[subjectID]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "subject %s not registered", subjectID)
	}
	out := make([]LevelChange, len(s.history))
	copy(out, s.history)
	return out, nil
}

// RecordViolation records a policy violation against the subject. Recent
// violations block promotion.
func (e *Engine) RecordViolation(subjectID, reason string, severity types.Severity) error {
	if !severity.Valid() {
		return types.NewErrorf(types.ErrValidation, "invalid severity %q", severity)
	}

	e.mu.Lock()
	s := e.ensureSubject(subjectID)
	s.violations = append(s.violations, violation{reason: reason, severity: severity, at: e.clk.Now()})
	e.mu.Unlock()

	e.logger.Warn("violation recorded",
		zap.String("subject_id", subjectID),
		zap.String("severity", string(severity)),
		zap.String("reason", reason),
	)
	return nil
}

// CheckPromotionEligibility evaluates every promotion condition for the next
// level and returns all unmet ones together.
func (e *Engine) CheckPromotionEligibility(subjectID string) (Eligibility, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.subjects[subjectID]
	if !ok {
		return Eligibility{}, types.NewErrorf(types.ErrNotFound, "subject %s not registered", subjectID)
	}
	return e.eligibilityLocked(s), nil
}

// eligibilityLocked computes eligibility. Caller must hold e.mu.
func (e *Engine) eligibilityLocked(s *subjectState) Eligibility {
	next, ok := s.level.Next()
	if !ok {
		return Eligibility{
			Eligible:  false,
			NextLevel: s.level,
			Reasons:   []string{"already at maximum trust level"},
		}
	}

	thresholds, ok := e.cfg.ThresholdsFor(next)
	if !ok {
		return Eligibility{
			Eligible:  false,
			NextLevel: next,
			Reasons:   []string{fmt.Sprintf("no promotion thresholds configured for %s", next)},
		}
	}

	now := e.clk.Now()
	score := e.calc.Calculate(s.window, now)

	var reasons []string
	if score.Overall < thresholds.MinScore {
		reasons = append(reasons, fmt.Sprintf("score %.1f below required %.1f", score.Overall, thresholds.MinScore))
	}
	if s.totalActions < thresholds.MinActions {
		reasons = append(reasons, fmt.Sprintf("%d actions recorded, %d required", s.totalActions, thresholds.MinActions))
	}
	daysActive := int(now.Sub(s.createdAt).Hours() / 24)
	if daysActive < thresholds.MinDaysActive {
		reasons = append(reasons, fmt.Sprintf("%d days active, %d required", daysActive, thresholds.MinDaysActive))
	}
	if score.ApprovalRate < thresholds.MinApprovalRate {
		reasons = append(reasons, fmt.Sprintf("approval rate %.2f below required %.2f", score.ApprovalRate, thresholds.MinApprovalRate))
	}
	if !s.lastPromotion.IsZero() {
		cooldown := time.Duration(thresholds.CooldownDays) * 24 * time.Hour
		if now.Sub(s.lastPromotion) < cooldown {
			reasons = append(reasons, fmt.Sprintf("promotion cooldown active, %d days required since last promotion", thresholds.CooldownDays))
		}
	}
	if n := e.recentViolationsLocked(s, now); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d violations in the last %d days", n, int(e.cfg.ViolationWindow.Hours()/24)))
	}

	return Eligibility{
		Eligible:  len(reasons) == 0,
		NextLevel: next,
		Reasons:   reasons,
	}
}

func (e *Engine) recentViolationsLocked(s *subjectState, now time.Time) int {
	count := 0
	for _, v := range s.violations {
		if now.Sub(v.at) <= e.cfg.ViolationWindow {
			count++
		}
	}
	return count
}

// PromoteTrustLevel raises the subject one level. Without override every
// eligibility condition must hold; with override the checks are bypassed but
// the change is logged and notified distinctly.
func (e *Engine) PromoteTrustLevel(subjectID, authorizedBy, reason string, override bool) (*LevelChange, error) {
	if authorizedBy == "" {
		return nil, types.NewError(types.ErrValidation, "authorizedBy is required")
	}

	e.mu.Lock()
	s, ok := e.subjects[subjectID]
	if !ok {
		e.mu.Unlock()
		return nil, types.NewErrorf(types.ErrNotFound, "subject %s not registered", subjectID)
	}

	next, hasNext := s.level.Next()
	if !hasNext {
		e.mu.Unlock()
		return nil, types.NewErrorf(types.ErrInvalidTransition, "subject %s already at %s", subjectID, s.level)
	}

	if !override {
		elig := e.eligibilityLocked(s)
		if !elig.Eligible {
			e.mu.Unlock()
			return nil, types.NewErrorf(types.ErrInvalidTransition,
				"subject %s not eligible for %s: %v", subjectID, next, elig.Reasons)
		}
	}

	now := e.clk.Now()
	change := LevelChange{
		SubjectID:    subjectID,
		From:         s.level,
		To:           next,
		Reason:       reason,
		AuthorizedBy: authorizedBy,
		Override:     override,
		At:           now,
	}
	s.level = next
	s.lastPromotion = now
	s.history = append(s.history, change)
	e.mu.Unlock()

	if override {
		e.logger.Warn("trust level promoted by override",
			zap.String("subject_id", subjectID),
			zap.String("to", next.String()),
			zap.String("authorized_by", authorizedBy),
			zap.String("reason", reason),
		)
	} else {
		e.logger.Info("trust level promoted",
			zap.String("subject_id", subjectID),
			zap.String("to", next.String()),
			zap.String("authorized_by", authorizedBy),
		)
	}
	if e.collector != nil {
		e.collector.RecordPromotion(next.String(), override)
		e.collector.SetTrustLevel(subjectID, int(next))
	}
	e.notifier.Notify(&notify.TrustLevelChanged{
		SubjectID:    subjectID,
		From:         change.From,
		To:           change.To,
		Reason:       reason,
		AuthorizedBy: authorizedBy,
		Override:     override,
		Timestamp_:   now,
	})

	return &change, nil
}

// severityDrops maps demotion severity to how many levels the subject loses.
var severityDrops = map[types.Severity]int{
	types.SeverityLow:      0,
	types.SeverityMedium:   1,
	types.SeverityHigh:     2,
	types.SeverityCritical: 3,
}

// DemoteTrustLevel lowers the subject's trust level according to severity:
// low logs only, medium drops one level, high drops two, critical forces L0.
func (e *Engine) DemoteTrustLevel(subjectID, reason string, severity types.Severity, authorizedBy string) (*LevelChange, error) {
	if !severity.Valid() {
		return nil, types.NewErrorf(types.ErrValidation, "invalid severity %q", severity)
	}

	e.mu.Lock()
	s, ok := e.subjects[subjectID]
	if !ok {
		e.mu.Unlock()
		return nil, types.NewErrorf(types.ErrNotFound, "subject %s not registered", subjectID)
	}

	drops := severityDrops[severity]
	target := s.level - types.TrustLevel(drops)
	if severity == types.SeverityCritical || target < types.TrustLevelObserved {
		target = types.TrustLevelObserved
	}

	now := e.clk.Now()
	change := LevelChange{
		SubjectID:    subjectID,
		From:         s.level,
		To:           target,
		Reason:       reason,
		AuthorizedBy: authorizedBy,
		Severity:     severity,
		At:           now,
	}

	if drops == 0 || target == s.level {
		e.mu.Unlock()
		e.logger.Warn("demotion recorded without level change",
			zap.String("subject_id", subjectID),
			zap.String("severity", string(severity)),
			zap.String("reason", reason),
		)
		return &change, nil
	}

	s.level = target
	s.history = append(s.history, change)
	e.mu.Unlock()

	e.logger.Warn("trust level demoted",
		zap.String("subject_id", subjectID),
		zap.String("from", change.From.String()),
		zap.String("to", target.String()),
		zap.String("severity", string(severity)),
		zap.String("reason", reason),
	)
	if e.collector != nil {
		e.collector.RecordDemotion(string(severity))
		e.collector.SetTrustLevel(subjectID, int(target))
	}
	e.notifier.Notify(&notify.TrustLevelChanged{
		SubjectID:    subjectID,
		From:         change.From,
		To:           change.To,
		Reason:       reason,
		AuthorizedBy: authorizedBy,
		Timestamp_:   now,
	})

	return &change, nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
