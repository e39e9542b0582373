// Package properties provides the tokenized property catalog stored in app.db.
package properties

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles property persistence
type Repository struct {
	appDB *sql.DB // app.db
	log   zerolog.Logger
}

// NewRepository creates a new property repository
func NewRepository(appDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		appDB: appDB,
		log:   log.With().Str("repo", "properties").Logger(),
	}
}

const propertyColumns = `id, title, location, token_price, expected_roi, rental_yield, created_at`

// Create inserts a property
func (r *Repository) Create(ctx context.Context, p *domain.Property) error {
	_, err := r.appDB.ExecContext(ctx, `
		INSERT INTO properties (`+propertyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Location, p.TokenPrice.String(), p.ExpectedROI.String(),
		p.RentalYield.String(), p.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	return nil
}

// GetByID returns a property or domain.ErrPropertyNotFound
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	row := r.appDB.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPropertyNotFound
	}
	return p, err
}

// List returns every property ordered by title
func (r *Repository) List(ctx context.Context) ([]domain.Property, error) {
	rows, err := r.appDB.QueryContext(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY title ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	properties := make([]domain.Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate properties: %w", err)
	}
	return properties, nil
}

// GetByIDs returns the properties found among ids, keyed by id. Missing ids are skipped.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Property, error) {
	result := make(map[string]domain.Property, len(ids))
	for _, id := range ids {
		if _, seen := result[id]; seen {
			continue
		}
		p, err := r.GetByID(ctx, id)
		if errors.Is(err, domain.ErrPropertyNotFound) {
			r.log.Warn().Str("property_id", id).Msg("Investment references unknown property")
			continue
		}
		if err != nil {
			return nil, err
		}
		result[id] = *p
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row scanner) (*domain.Property, error) {
	var (
		p                       domain.Property
		price, roi, rentalYield string
		createdAt               int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Location, &price, &roi, &rentalYield, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan property: %w", err)
	}

	var err error
	if p.TokenPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("corrupt token price on property %s: %w", p.ID, err)
	}
	if p.ExpectedROI, err = decimal.NewFromString(roi); err != nil {
		return nil, fmt.Errorf("corrupt expected roi on property %s: %w", p.ID, err)
	}
	if p.RentalYield, err = decimal.NewFromString(rentalYield); err != nil {
		return nil, fmt.Errorf("corrupt rental yield on property %s: %w", p.ID, err)
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	return &p, nil
}
