package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/appstate"
	"storefront-api/internal/models"
)

func sampleRecord(sessionID string, createdAt time.Time) models.OrderRecord {
	return models.OrderRecord{
		SessionID:  sessionID,
		ExternalID: uuid.NewString(),
		Payment:    appstate.PaymentCard,
		Email:      "buyer@example.com",
		Phone:      "+70000000000",
		Address:    "Main st. 1",
		Items:      []string{"p1", "p3"},
		Total:      decimal.RequireFromString("620.50"),
		CreatedAt:  createdAt,
	}
}

// exercise runs the same contract checks against any implementation.
func exercise(t *testing.T, repo OrderRepository) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// Save assigns an id
	first, err := repo.Save(ctx, sampleRecord("s1", base))
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := repo.Save(ctx, sampleRecord("s2", base.Add(time.Minute)))
	require.NoError(t, err)

	// Get round trips
	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, got.SessionID)
	assert.Equal(t, first.Items, got.Items)
	assert.True(t, first.Total.Equal(got.Total))
	assert.Equal(t, appstate.PaymentCard, got.Payment)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	// List is newest first
	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)

	limited, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryOrderRepository(t *testing.T) {
	repo := NewMemoryOrderRepository()
	t.Cleanup(func() { _ = repo.Close() })

	exercise(t, repo)
}

func TestMemoryOrderRepository_DuplicateID(t *testing.T) {
	repo := NewMemoryOrderRepository()
	record := sampleRecord("s1", time.Now())
	record.ID = "fixed"

	_, err := repo.Save(context.Background(), record)
	require.NoError(t, err)
	_, err = repo.Save(context.Background(), record)

	assert.Error(t, err)
}

func TestMemoryOrderRepository_SaveCopiesItems(t *testing.T) {
	repo := NewMemoryOrderRepository()
	record := sampleRecord("s1", time.Now())

	saved, err := repo.Save(context.Background(), record)
	require.NoError(t, err)
	record.Items[0] = "changed"

	got, err := repo.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Items[0])
}

func TestMemoryOrderRepository_ReadsReturnCopies(t *testing.T) {
	// Arrange
	repo := NewMemoryOrderRepository()
	saved, err := repo.Save(context.Background(), sampleRecord("s1", time.Now()))
	require.NoError(t, err)

	// Act
	saved.Items[0] = "from save"
	got, err := repo.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	got.Items[0] = "from get"
	listed, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Items[0] = "from list"

	// Assert
	again, err := repo.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "p1", again.Items[0])
}

func TestPostgresOrderRepository(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := OpenDatabase(ctx, url)
	require.NoError(t, err)
	repo, err := NewPostgresOrderRepository(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	_, err = db.ExecContext(ctx, `TRUNCATE storefront_orders`)
	require.NoError(t, err)

	exercise(t, repo)
}

func TestOpenDatabase_EmptyURL(t *testing.T) {
	_, err := OpenDatabase(context.Background(), "")
	assert.Error(t, err)
}
