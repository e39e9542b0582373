package portfolio

import (
	"context"
	"time"

	"github.com/aristath/brickvault/internal/domain"
	"github.com/rs/zerolog"
)

// LedgerReader is the read side of the ledger used by the summary. Holdings
// must return positions and balance from one consistent snapshot.
type LedgerReader interface {
	Holdings(ctx context.Context, accountID string) (*domain.Holdings, error)
}

// PropertyLookup resolves the properties positions refer to
type PropertyLookup interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Property, error)
}

// Summary is the read-only portfolio view of an account
type Summary struct {
	GeneratedAt time.Time            `json:"generated_at"`
	AccountID   string               `json:"account_id"`
	Positions   []Position           `json:"positions"`
	Totals      Totals               `json:"totals"`
	Wallet      domain.WalletBalance `json:"wallet"`
}

// Service builds portfolio summaries
type Service struct {
	ledger     LedgerReader
	properties PropertyLookup
	log        zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(ledger LedgerReader, properties PropertyLookup, log zerolog.Logger) *Service {
	return &Service{
		ledger:     ledger,
		properties: properties,
		log:        log.With().Str("service", "portfolio").Logger(),
	}
}

// Summary loads the account's positions and wallet and derives every metric.
// Positions whose property is no longer listed are reported with zero yield.
func (s *Service) Summary(ctx context.Context, accountID string) (*Summary, error) {
	holdings, err := s.ledger.Holdings(ctx, accountID)
	if err != nil {
		return nil, err
	}
	investments, wallet := holdings.Investments, holdings.Balance

	ids := make([]string, 0, len(investments))
	for _, inv := range investments {
		ids = append(ids, inv.PropertyID)
	}
	props, err := s.properties.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	positions := make([]Position, 0, len(investments))
	for _, inv := range investments {
		var property *domain.Property
		if p, ok := props[inv.PropertyID]; ok {
			property = &p
		}
		positions = append(positions, NewPosition(inv, property))
	}

	totals := Aggregate(positions)
	s.log.Debug().
		Str("account_id", accountID).
		Int("positions", totals.Positions).
		Str("total_value", totals.TotalValue.String()).
		Msg("Portfolio summary computed")

	return &Summary{
		GeneratedAt: time.Now().UTC(),
		AccountID:   accountID,
		Positions:   positions,
		Totals:      totals,
		Wallet:      wallet,
	}, nil
}
