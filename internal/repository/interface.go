// Package repository archives accepted orders.
package repository

import (
	"context"
	"errors"

	"storefront-api/internal/models"
)

// ErrOrderNotFound is returned when an order id is unknown
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository stores orders accepted by the upstream API
type OrderRepository interface {
	// Save stores a record. An empty ID is replaced with a generated one;
	// the stored record is returned.
	Save(ctx context.Context, record models.OrderRecord) (models.OrderRecord, error)
	Get(ctx context.Context, id string) (models.OrderRecord, error)
	// List returns the newest records first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]models.OrderRecord, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
