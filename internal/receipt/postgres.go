package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const purchasesSchema = `
CREATE TABLE IF NOT EXISTS purchases (
	id            BIGSERIAL PRIMARY KEY,
	month         TEXT NOT NULL,
	item_name     TEXT NOT NULL,
	price         INTEGER NOT NULL,
	shop_name     TEXT NOT NULL,
	purchase_date TEXT NOT NULL,
	registered_at TEXT NOT NULL,
	receipt_id    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS purchases_month_idx ON purchases (month, registered_at);`

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore connects to databaseURL and creates the purchases table
// if it does not exist
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, purchasesSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating purchases table: %w", err)
	}

	return &PostgresStore{pool: pool, timeout: 10 * time.Second}, nil
}

// AddRows appends rows to a monthly ledger in one transaction
func (p *PostgresStore) AddRows(month string, rows []Row) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`INSERT INTO purchases (month, item_name, price, shop_name, purchase_date, registered_at, receipt_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			month, row.ItemName, row.Price, row.ShopName, row.PurchaseDate, row.RegisteredAt, row.ReceiptID)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing rows: %w", err)
	}
	return nil
}

// ListRows returns every row of a monthly ledger in insertion order
func (p *PostgresStore) ListRows(month string) ([]Row, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT item_name, price, shop_name, purchase_date, registered_at, receipt_id
		FROM purchases WHERE month = $1 ORDER BY id`, month)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ItemName, &r.Price, &r.ShopName, &r.PurchaseDate, &r.RegisteredAt, &r.ReceiptID); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return out, nil
}

// DeleteRegistration removes every row committed at registeredAt
func (p *PostgresStore) DeleteRegistration(month, registeredAt string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	tag, err := p.pool.Exec(ctx, `DELETE FROM purchases WHERE month = $1 AND registered_at = $2`, month, registeredAt)
	if err != nil {
		return fmt.Errorf("deleting registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: registration %s", ErrNotFound, registeredAt)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
