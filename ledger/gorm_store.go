package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/trustflow/types"
)

// sessionRow is the gorm mapping of a Session.
type sessionRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	AgentID    string    `gorm:"size:64;index"`
	SubjectID  string    `gorm:"size:64;index"`
	TrustLevel int       `gorm:"not null"`
	State      string    `gorm:"size:16;not null"`
	StartedAt  time.Time `gorm:"not null"`
	EndedAt    *time.Time
	Version    int64 `gorm:"not null"`
}

func (sessionRow) TableName() string { return "ledger_sessions" }

// decisionRow is the gorm mapping of a Decision.
type decisionRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	SessionID  string    `gorm:"size:64;index"`
	AgentID    string    `gorm:"size:64;index:idx_decisions_agent_created"`
	Type       string    `gorm:"size:64;not null"`
	Confidence float64   `gorm:"not null"`
	Status     string    `gorm:"size:16;not null"`
	Note       string    `gorm:"size:1024"`
	CreatedAt  time.Time `gorm:"not null;index:idx_decisions_agent_created"`
	ExecutedAt *time.Time
	Version    int64 `gorm:"not null"`
}

func (decisionRow) TableName() string { return "ledger_decisions" }

// GormStore is a relational Store. Optimistic concurrency uses a version
// column checked in the UPDATE's WHERE clause; zero rows affected means a
// conflicting writer got there first.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the ledger tables and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&sessionRow{}, &decisionRow{}); err != nil {
		return nil, types.NewError(types.ErrPersistence, "failed to migrate ledger tables").WithCause(err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SaveSession(ctx context.Context, session *Session) error {
	row := sessionToRow(session)
	db := s.db.WithContext(ctx)

	if session.Version == 0 {
		row.Version = 1
		if err := db.Create(row).Error; err != nil {
			return types.NewError(types.ErrPersistence, "failed to insert session").WithCause(err)
		}
		session.Version = 1
		return nil
	}

	row.Version = session.Version + 1
	res := db.Model(&sessionRow{}).
		Where("id = ? AND version = ?", session.ID, session.Version).
		Updates(row)
	if res.Error != nil {
		return types.NewError(types.ErrPersistence, "failed to update session").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return types.NewErrorf(types.ErrInvalidTransition,
			"session %s version conflict at %d", session.ID, session.Version)
	}
	session.Version++
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewErrorf(types.ErrNotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, types.NewError(types.ErrPersistence, "failed to load session").WithCause(err)
	}
	return rowToSession(&row), nil
}

func (s *GormStore) AppendDecision(ctx context.Context, d *Decision) error {
	row := decisionToRow(d)
	row.Version = 1
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return types.NewError(types.ErrPersistence, "failed to append decision").WithCause(err)
	}
	d.Version = 1
	return nil
}

func (s *GormStore) SaveDecision(ctx context.Context, d *Decision) error {
	row := decisionToRow(d)
	row.Version = d.Version + 1
	res := s.db.WithContext(ctx).Model(&decisionRow{}).
		Where("id = ? AND version = ?", d.ID, d.Version).
		Updates(row)
	if res.Error != nil {
		return types.NewError(types.ErrPersistence, "failed to update decision").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		s.db.WithContext(ctx).Model(&decisionRow{}).Where("id = ?", d.ID).Count(&count)
		if count == 0 {
			return types.NewErrorf(types.ErrNotFound, "decision %s not found", d.ID)
		}
		return types.NewErrorf(types.ErrInvalidTransition,
			"decision %s version conflict at %d", d.ID, d.Version)
	}
	d.Version++
	return nil
}

func (s *GormStore) GetDecision(ctx context.Context, id string) (*Decision, error) {
	var row decisionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewErrorf(types.ErrNotFound, "decision %s not found", id)
	}
	if err != nil {
		return nil, types.NewError(types.ErrPersistence, "failed to load decision").WithCause(err)
	}
	return rowToDecision(&row), nil
}

func (s *GormStore) ListDecisionsBySession(ctx context.Context, sessionID string) ([]*Decision, error) {
	var rows []decisionRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrPersistence, "failed to list decisions").WithCause(err)
	}
	return rowsToDecisions(rows), nil
}

func (s *GormStore) ListDecisionsByAgent(ctx context.Context, agentID string, since time.Time) ([]*Decision, error) {
	var rows []decisionRow
	err := s.db.WithContext(ctx).
		Where("agent_id = ? AND created_at >= ?", agentID, since).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, types.NewError(types.ErrPersistence, "failed to list decisions").WithCause(err)
	}
	return rowsToDecisions(rows), nil
}

func sessionToRow(s *Session) *sessionRow {
	row := &sessionRow{
		ID:         s.ID,
		AgentID:    s.AgentID,
		SubjectID:  s.SubjectID,
		TrustLevel: int(s.TrustLevel),
		State:      string(s.State),
		StartedAt:  s.StartedAt,
		Version:    s.Version,
	}
	if !s.EndedAt.IsZero() {
		t := s.EndedAt
		row.EndedAt = &t
	}
	return row
}

func rowToSession(row *sessionRow) *Session {
	s := &Session{
		ID:         row.ID,
		AgentID:    row.AgentID,
		SubjectID:  row.SubjectID,
		TrustLevel: types.TrustLevel(row.TrustLevel),
		State:      SessionState(row.State),
		StartedAt:  row.StartedAt,
		Version:    row.Version,
	}
	if row.EndedAt != nil {
		s.EndedAt = *row.EndedAt
	}
	return s
}

func decisionToRow(d *Decision) *decisionRow {
	row := &decisionRow{
		ID:         d.ID,
		SessionID:  d.SessionID,
		AgentID:    d.AgentID,
		Type:       d.Type,
		Confidence: d.Confidence,
		Status:     string(d.Status),
		Note:       d.Note,
		CreatedAt:  d.CreatedAt,
		Version:    d.Version,
	}
	if !d.ExecutedAt.IsZero() {
		t := d.ExecutedAt
		row.ExecutedAt = &t
	}
	return row
}

func rowToDecision(row *decisionRow) *Decision {
	d := &Decision{
		ID:         row.ID,
		SessionID:  row.SessionID,
		AgentID:    row.AgentID,
		Type:       row.Type,
		Confidence: row.Confidence,
		Status:     DecisionStatus(row.Status),
		Note:       row.Note,
		CreatedAt:  row.CreatedAt,
		Version:    row.Version,
	}
	if row.ExecutedAt != nil {
		d.ExecutedAt = *row.ExecutedAt
	}
	return d
}

func rowsToDecisions(rows []decisionRow) []*Decision {
	out := make([]*Decision, 0, len(rows))
	for i := range rows {
		out = append(out, rowToDecision(&rows[i]))
	}
	return out
}

var _ Store = (*GormStore)(nil)
