package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"storefront-api/internal/appstate"
	"storefront-api/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS storefront_orders (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	external_id TEXT NOT NULL,
	payment     TEXT NOT NULL,
	email       TEXT NOT NULL,
	phone       TEXT NOT NULL,
	address     TEXT NOT NULL,
	items       JSONB NOT NULL,
	total       NUMERIC NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

// PostgresOrderRepository stores orders in PostgreSQL through the pgx driver
type PostgresOrderRepository struct {
	db *sql.DB
}

var _ OrderRepository = (*PostgresOrderRepository)(nil)

// OpenDatabase opens and pings a PostgreSQL connection
func OpenDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	slog.Info("Database connection established")
	return db, nil
}

// NewPostgresOrderRepository creates the repository and its table
func NewPostgresOrderRepository(ctx context.Context, db *sql.DB) (*PostgresOrderRepository, error) {
	r := &PostgresOrderRepository{db: db}
	if err := r.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// EnsureSchema creates the orders table if needed
func (r *PostgresOrderRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}
	return nil
}

// Save inserts a record
func (r *PostgresOrderRepository) Save(ctx context.Context, record models.OrderRecord) (models.OrderRecord, error) {
	record = prepare(record)
	items, err := json.Marshal(record.Items)
	if err != nil {
		return models.OrderRecord{}, fmt.Errorf("failed to encode items: %w", err)
	}

	query := `
		INSERT INTO storefront_orders
			(id, session_id, external_id, payment, email, phone, address, items, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.SessionID, record.ExternalID, string(record.Payment),
		record.Email, record.Phone, record.Address, string(items), record.Total, record.CreatedAt)
	if err != nil {
		slog.Error("Failed to insert order", "order_id", record.ID, "error", err)
		return models.OrderRecord{}, fmt.Errorf("failed to insert order: %w", err)
	}
	return record, nil
}

// Get returns one record
func (r *PostgresOrderRepository) Get(ctx context.Context, id string) (models.OrderRecord, error) {
	query := `
		SELECT id, session_id, external_id, payment, email, phone, address, items, total, created_at
		FROM storefront_orders
		WHERE id = $1
	`
	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.OrderRecord{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return models.OrderRecord{}, fmt.Errorf("failed to fetch order: %w", err)
	}
	return record, nil
}

// List returns the newest records first
func (r *PostgresOrderRepository) List(ctx context.Context, limit int) ([]models.OrderRecord, error) {
	query := `
		SELECT id, session_id, external_id, payment, email, phone, address, items, total, created_at
		FROM storefront_orders
		ORDER BY created_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	records := make([]models.OrderRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records
func (r *PostgresOrderRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM storefront_orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (r *PostgresOrderRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.OrderRecord, error) {
	var (
		record  models.OrderRecord
		payment string
		items   []byte
	)
	err := row.Scan(&record.ID, &record.SessionID, &record.ExternalID, &payment,
		&record.Email, &record.Phone, &record.Address, &items, &record.Total, &record.CreatedAt)
	if err != nil {
		return models.OrderRecord{}, err
	}
	record.Payment = appstate.PaymentMethod(payment)
	if err := json.Unmarshal(items, &record.Items); err != nil {
		return models.OrderRecord{}, fmt.Errorf("failed to decode items: %w", err)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}
