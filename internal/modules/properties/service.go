package properties

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CreateInput holds the fields of a new listing. ExpectedROI and RentalYield are annual percentages.
type CreateInput struct {
	Title       string
	Location    string
	TokenPrice  decimal.Decimal
	ExpectedROI decimal.Decimal
	RentalYield decimal.Decimal
}

// Service manages the property catalog. It satisfies the catalog lookups of
// the ledger, planning and portfolio modules.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new property service
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "properties").Logger(),
	}
}

// Create validates and stores a new listing
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Property, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrInvalidProperty)
	}
	if err := domain.CheckAmount(in.TokenPrice); err != nil {
		return nil, fmt.Errorf("token price: %w", domain.ErrInvalidProperty)
	}
	if !in.TokenPrice.IsPositive() {
		return nil, fmt.Errorf("token price must be positive: %w", domain.ErrInvalidProperty)
	}
	if in.ExpectedROI.IsNegative() {
		return nil, fmt.Errorf("expected roi must not be negative: %w", domain.ErrInvalidYield)
	}
	for _, rate := range []decimal.Decimal{in.ExpectedROI, in.RentalYield} {
		if err := domain.CheckPrecision(rate, domain.RateScale); err != nil {
			return nil, fmt.Errorf("yield: %w", domain.ErrInvalidYield)
		}
	}
	if in.RentalYield.IsNegative() {
		return nil, fmt.Errorf("rental yield must not be negative: %w", domain.ErrInvalidYield)
	}

	p := &domain.Property{
		ID:          uuid.NewString(),
		Title:       title,
		Location:    strings.TrimSpace(in.Location),
		TokenPrice:  in.TokenPrice,
		ExpectedROI: in.ExpectedROI,
		RentalYield: in.RentalYield,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, domain.Persistence("create property", err)
	}

	s.log.Info().Str("property_id", p.ID).Str("title", p.Title).Msg("Property listed")
	return p, nil
}

// GetByID returns a property or domain.ErrPropertyNotFound
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Property, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Persistence("get property", err)
	}
	return p, nil
}

// GetByIDs resolves several properties at once, skipping unknown ids
func (s *Service) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Property, error) {
	found, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.Persistence("get properties", err)
	}
	return found, nil
}

// List returns the whole catalog
func (s *Service) List(ctx context.Context) ([]domain.Property, error) {
	properties, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Persistence("list properties", err)
	}
	return properties, nil
}
