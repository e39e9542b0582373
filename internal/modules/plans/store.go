// Package plans persists explicitly saved investment plans in app.db. Each
// save appends an immutable snapshot encoded with msgpack.
package plans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/brickvault/internal/database"
	"github.com/aristath/brickvault/internal/domain"
	"github.com/aristath/brickvault/internal/events"
	"github.com/aristath/brickvault/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// EventEmitter publishes plan events
type EventEmitter interface {
	Emit(eventType events.EventType, module, accountID string, data map[string]interface{})
}

// Store is the durable per-account list of saved plans
type Store struct {
	appDB   *sql.DB
	emitter EventEmitter
	now     func() time.Time
	log     zerolog.Logger
}

// NewStore creates a plan store over app.db. emitter may be nil.
func NewStore(appDB *sql.DB, emitter EventEmitter, log zerolog.Logger) *Store {
	return &Store{
		appDB:   appDB,
		emitter: emitter,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With().Str("repo", "plans").Logger(),
	}
}

// Save appends a snapshot of plan for the account. Concurrent saves each add
// their own row, so none is lost.
func (s *Store) Save(ctx context.Context, accountID string, plan domain.InvestmentPlan) (*domain.SavedPlan, error) {
	if accountID == "" {
		return nil, domain.ErrAccountNotFound
	}

	now := s.now()
	saved := &domain.SavedPlan{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Plan:      plan,
		CreatedAt: now,
		UpdatedAt: now,
	}

	blob, err := msgpack.Marshal(saved)
	if err != nil {
		return nil, domain.Persistence("save plan", fmt.Errorf("failed to encode plan: %w", err))
	}

	err = database.WithTransactionContext(ctx, s.appDB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO saved_plans (id, account_id, snapshot, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, saved.ID, saved.AccountID, blob, now.UnixNano(), now.UnixNano())
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to save plan")
		return nil, domain.Persistence("save plan", err)
	}

	metrics.PlansSavedTotal.Inc()
	s.emit(events.PlanSaved, accountID, map[string]interface{}{"plan_id": saved.ID})
	return saved, nil
}

// List returns the account's saved plans, oldest first
func (s *Store) List(ctx context.Context, accountID string) ([]domain.SavedPlan, error) {
	rows, err := s.appDB.QueryContext(ctx, `
		SELECT snapshot FROM saved_plans WHERE account_id = ? ORDER BY created_at ASC, id ASC
	`, accountID)
	if err != nil {
		return nil, domain.Persistence("list plans", err)
	}
	defer rows.Close()

	plans := make([]domain.SavedPlan, 0)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, domain.Persistence("list plans", err)
		}
		p, err := decode(blob)
		if err != nil {
			return nil, domain.Persistence("list plans", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list plans", err)
	}
	return plans, nil
}

// Get returns one saved plan or domain.ErrPlanNotFound
func (s *Store) Get(ctx context.Context, id string) (*domain.SavedPlan, error) {
	var blob []byte
	err := s.appDB.QueryRowContext(ctx, `SELECT snapshot FROM saved_plans WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlanNotFound
	}
	if err != nil {
		return nil, domain.Persistence("get plan", err)
	}
	p, err := decode(blob)
	if err != nil {
		return nil, domain.Persistence("get plan", err)
	}
	return p, nil
}

// Delete removes a saved plan. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	var accountID string
	err := database.WithTransactionContext(ctx, s.appDB, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT account_id FROM saved_plans WHERE id = ?`, id).Scan(&accountID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM saved_plans WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return domain.Persistence("delete plan", err)
	}

	if accountID != "" {
		s.emit(events.PlanDeleted, accountID, map[string]interface{}{"plan_id": id})
	}
	return nil
}

// Clear removes every saved plan of an account and returns how many were removed
func (s *Store) Clear(ctx context.Context, accountID string) (int64, error) {
	res, err := s.appDB.ExecContext(ctx, `DELETE FROM saved_plans WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, domain.Persistence("clear plans", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.Persistence("clear plans", err)
	}

	if n > 0 {
		s.log.Info().Str("account_id", accountID).Int64("removed", n).Msg("Saved plans cleared")
		s.emit(events.PlanDeleted, accountID, map[string]interface{}{"removed": n})
	}
	return n, nil
}

func (s *Store) emit(eventType events.EventType, accountID string, data map[string]interface{}) {
	if s.emitter != nil {
		s.emitter.Emit(eventType, "plans", accountID, data)
	}
}

func decode(blob []byte) (*domain.SavedPlan, error) {
	var p domain.SavedPlan
	if err := msgpack.Unmarshal(blob, &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan snapshot: %w", err)
	}

	// msgpack restores timestamps in the local zone
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.Plan.FirstDepositDate != nil {
		t := p.Plan.FirstDepositDate.UTC()
		p.Plan.FirstDepositDate = &t
	}
	if p.Plan.SelectedProperty != nil {
		p.Plan.SelectedProperty.CreatedAt = p.Plan.SelectedProperty.CreatedAt.UTC()
	}
	return &p, nil
}
