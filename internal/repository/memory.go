package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-api/internal/models"
)

// MemoryOrderRepository keeps orders in process memory
type MemoryOrderRepository struct {
	orders map[string]models.OrderRecord
	mutex  sync.RWMutex
}

var _ OrderRepository = (*MemoryOrderRepository)(nil)

// NewMemoryOrderRepository creates an empty in-memory archive
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.OrderRecord),
	}
}

// Save stores a record
func (r *MemoryOrderRepository) Save(_ context.Context, record models.OrderRecord) (models.OrderRecord, error) {
	record = prepare(record)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.orders[record.ID]; exists {
		return models.OrderRecord{}, fmt.Errorf("order %s already exists", record.ID)
	}
	r.orders[record.ID] = record
	return withOwnItems(record), nil
}

// Get returns one record
func (r *MemoryOrderRepository) Get(_ context.Context, id string) (models.OrderRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	record, ok := r.orders[id]
	if !ok {
		return models.OrderRecord{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return withOwnItems(record), nil
}

// List returns the newest records first
func (r *MemoryOrderRepository) List(_ context.Context, limit int) ([]models.OrderRecord, error) {
	r.mutex.RLock()
	records := make([]models.OrderRecord, 0, len(r.orders))
	for _, record := range r.orders {
		records = append(records, withOwnItems(record))
	}
	r.mutex.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Count returns the number of stored records
func (r *MemoryOrderRepository) Count(context.Context) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.orders), nil
}

// Close is a no-op
func (r *MemoryOrderRepository) Close() error {
	return nil
}

func prepare(record models.OrderRecord) models.OrderRecord {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return withOwnItems(record)
}

// withOwnItems gives record a private copy of its Items
func withOwnItems(record models.OrderRecord) models.OrderRecord {
	record.Items = append(make([]string, 0, len(record.Items)), record.Items...)
	return record
}
