package properties

import (
	"context"
	"testing"

	"github.com/aristath/brickvault/internal/domain"
	testingpkg "github.com/aristath/brickvault/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "app")
	t.Cleanup(cleanup)
	return NewService(NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
}

func validInput(title string) CreateInput {
	return CreateInput{
		Title:       title,
		Location:    "Lisbon",
		TokenPrice:  decimal.RequireFromString("50.00"),
		ExpectedROI: decimal.RequireFromString("9"),
		RentalYield: decimal.RequireFromString("7.25"),
	}
}

func TestCreateAndGet(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	created, err := s.Create(ctx, validInput("  Alfama Flats "))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Alfama Flats", created.Title)

	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.True(t, created.TokenPrice.Equal(got.TokenPrice))
	assert.True(t, decimal.RequireFromString("7.25").Equal(got.RentalYield))
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPropertyNotFound)
}

func TestCreate_Validation(t *testing.T) {
	s := setupService(t)

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
		want   error
	}{
		{"empty title", func(in *CreateInput) { in.Title = " " }, domain.ErrInvalidProperty},
		{"zero price", func(in *CreateInput) { in.TokenPrice = decimal.Zero }, domain.ErrInvalidProperty},
		{"negative roi", func(in *CreateInput) { in.ExpectedROI = decimal.NewFromInt(-1) }, domain.ErrInvalidYield},
		{"negative yield", func(in *CreateInput) { in.RentalYield = decimal.NewFromInt(-1) }, domain.ErrInvalidYield},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput("x")
			tc.mutate(&in)
			_, err := s.Create(context.Background(), in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListAndGetByIDs(t *testing.T) {
	s := setupService(t)
	ctx := context.Background()

	b, err := s.Create(ctx, validInput("Beta"))
	require.NoError(t, err)
	a, err := s.Create(ctx, validInput("Alpha"))
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Title)
	assert.Equal(t, "Beta", list[1].Title)

	found, err := s.GetByIDs(ctx, []string{a.ID, b.ID, a.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Beta", found[b.ID].Title)
}
