package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"coin-price-etl/models"
	"coin-price-etl/utils"
)

// PostgresStore persists products and stats to PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL and pings it with
// backoff until the database is reachable. Schema setup is a separate,
// explicit InitSchema call.
func NewPostgresStore(dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do("postgres-ping", db.Ping); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// InitSchema idempotently creates the tables and indexes. It never drops
// anything; destructive reset is a separate opt-in operation (see Reset).
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			product_id UUID         PRIMARY KEY,
			date       DATE         NOT NULL,
			title      TEXT         NOT NULL,
			metal      TEXT         NOT NULL DEFAULT 'unavailable',
			link       TEXT         NOT NULL DEFAULT 'unavailable',
			image      TEXT         NOT NULL DEFAULT 'unavailable',
			price      NUMERIC(12,2) NOT NULL,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_products_date ON products(date);
		CREATE INDEX IF NOT EXISTS idx_products_metal ON products(metal);

		CREATE TABLE IF NOT EXISTS stats (
			stat_id       UUID         PRIMARY KEY,
			date          DATE         NOT NULL,
			title         TEXT         NOT NULL,
			total         INTEGER      NOT NULL,
			min_price     NUMERIC(12,2) NOT NULL,
			max_price     NUMERIC(12,2) NOT NULL,
			average_price NUMERIC(12,2) NOT NULL,
			median_price  NUMERIC(12,2) NOT NULL,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_stats_date ON stats(date);
	`)
	if err != nil {
		return fmt.Errorf("%w: init schema: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Reset drops and recreates both tables. Never called on the boot path;
// only the resetdb command invokes it, behind an explicit flag.
func (s *PostgresStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS products; DROP TABLE IF EXISTS stats;`); err != nil {
		return fmt.Errorf("postgres: reset: %w", err)
	}
	s.logger.Warn("[postgres] Tables dropped — recreating schema")
	return s.InitSchema(ctx)
}

// AppendRaw validates each product individually and batch-inserts the valid
// remainder. Re-sending an already-written product_id is a no-op, so the
// call is idempotent per identifier.
func (s *PostgresStore) AppendRaw(ctx context.Context, products []*models.Product) (*AppendReport, error) {
	report := &AppendReport{}

	valid := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if recErr := validateProduct(p); recErr != nil {
			report.Rejected = append(report.Rejected, recErr)
			s.logger.Warn("[postgres] Rejected record: %v", recErr)
			continue
		}
		valid = append(valid, p)
	}

	const batchSize = 50
	for i := 0; i < len(valid); i += batchSize {
		end := i + batchSize
		if end > len(valid) {
			end = len(valid)
		}
		n, err := s.insertBatch(ctx, valid[i:end])
		if err != nil {
			return report, fmt.Errorf("%w: append raw: %v", models.ErrStoreUnavailable, err)
		}
		report.Written += n
	}

	return report, nil
}

func (s *PostgresStore) insertBatch(ctx context.Context, batch []*models.Product) (int, error) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*8)

	for idx, p := range batch {
		base := idx * 8
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		valueArgs = append(valueArgs,
			p.ProductID, p.Date, p.Title, p.Metal, p.Link, p.Image, p.Price, p.CreatedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO products (product_id, date, title, metal, link, image, price, created_at)
		VALUES %s
		ON CONFLICT (product_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("[postgres] RowsAffected unavailable (%v) — reporting all %d rows of the batch as written", err, len(batch))
		return len(batch), nil
	}
	return int(n), nil
}

// AppendStats persists one derived record.
func (s *PostgresStore) AppendStats(ctx context.Context, st *models.Stats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stats (stat_id, date, title, total, min_price, max_price, average_price, median_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, st.StatID, st.Date, st.Title, st.Total, st.MinPrice, st.MaxPrice, st.AveragePrice, st.MedianPrice, st.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: append stats: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// RawByDate returns every product captured on the given calendar date.
func (s *PostgresStore) RawByDate(ctx context.Context, date string) ([]*models.Product, error) {
	return s.queryProducts(ctx, `
		SELECT product_id, to_char(date, 'YYYY-MM-DD'), title, metal, link, image, price, created_at
		FROM products
		WHERE date = $1
		ORDER BY created_at, product_id
	`, date)
}

// AllRaw returns every persisted product.
func (s *PostgresStore) AllRaw(ctx context.Context) ([]*models.Product, error) {
	return s.queryProducts(ctx, `
		SELECT product_id, to_char(date, 'YYYY-MM-DD'), title, metal, link, image, price, created_at
		FROM products
		ORDER BY date, created_at, product_id
	`)
}

func (s *PostgresStore) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query products: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(
			&p.ProductID, &p.Date, &p.Title, &p.Metal, &p.Link, &p.Image, &p.Price, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AllStats returns every persisted stats record.
func (s *PostgresStore) AllStats(ctx context.Context) ([]*models.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stat_id, to_char(date, 'YYYY-MM-DD'), title, total, min_price, max_price, average_price, median_price, created_at
		FROM stats
		ORDER BY date, created_at, stat_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query stats: %v", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var stats []*models.Stats
	for rows.Next() {
		st := &models.Stats{}
		if err := rows.Scan(
			&st.StatID, &st.Date, &st.Title, &st.Total,
			&st.MinPrice, &st.MaxPrice, &st.AveragePrice, &st.MedianPrice, &st.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
