package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps bills in Postgres. Amounts are stored as text and cast to
// numeric inside the decrement statement, so the clamp-at-zero update is a
// single atomic UPDATE. Payment dedupe rides on the bill_payments primary key.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// Migrate creates the bills schema.
func (s *PGStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bills (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			merchant_address TEXT NOT NULL,
			merchant_chain_id TEXT NOT NULL,
			total_amount TEXT NOT NULL,
			remaining_amount TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS bill_payments (
			bill_id TEXT NOT NULL REFERENCES bills(id),
			tx_hash TEXT NOT NULL,
			amount TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (bill_id, tx_hash)
		);
	`)
	return err
}

func (s *PGStore) Create(ctx context.Context, bill *Bill) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bills (id, merchant_address, merchant_chain_id, total_amount, remaining_amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		bill.ID, bill.MerchantAddress, bill.MerchantChainID, bill.TotalAmount, bill.RemainingAmount, bill.CreatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Bill, error) {
	return s.scanBill(s.pool.QueryRow(ctx,
		`SELECT id, merchant_address, merchant_chain_id, total_amount, remaining_amount, created_at
		 FROM bills WHERE id = $1`, id))
}

func (s *PGStore) List(ctx context.Context) ([]*Bill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, merchant_address, merchant_chain_id, total_amount, remaining_amount, created_at
		 FROM bills ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []*Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.MerchantAddress, &b.MerchantChainID, &b.TotalAmount, &b.RemainingAmount, &b.CreatedAt); err != nil {
			return nil, err
		}
		bills = append(bills, &b)
	}
	return bills, rows.Err()
}

func (s *PGStore) SetRemaining(ctx context.Context, id, remaining string) (*Bill, error) {
	return s.scanBill(s.pool.QueryRow(ctx,
		`UPDATE bills SET remaining_amount = $2 WHERE id = $1
		 RETURNING id, merchant_address, merchant_chain_id, total_amount, remaining_amount, created_at`,
		id, remaining))
}

func (s *PGStore) ApplyPayment(ctx context.Context, id, paid, txHash string) (*Bill, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent payments against the same bill.
	current, err := s.scanBill(tx.QueryRow(ctx,
		`SELECT id, merchant_address, merchant_chain_id, total_amount, remaining_amount, created_at
		 FROM bills WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	if txHash != "" {
		tag, err := tx.Exec(ctx,
			`INSERT INTO bill_payments (bill_id, tx_hash, amount) VALUES ($1, $2, $3)
			 ON CONFLICT (bill_id, tx_hash) DO NOTHING`,
			id, txHash, paid,
		)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			// already applied, return current state unchanged
			return current, tx.Commit(ctx)
		}
	}

	bill, err := s.scanBill(tx.QueryRow(ctx,
		`UPDATE bills
		 SET remaining_amount = GREATEST(remaining_amount::numeric - $2::numeric, 0)::text
		 WHERE id = $1
		 RETURNING id, merchant_address, merchant_chain_id, total_amount, remaining_amount, created_at`,
		id, paid))
	if err != nil {
		return nil, err
	}
	return bill, tx.Commit(ctx)
}

func (s *PGStore) scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.MerchantAddress, &b.MerchantChainID, &b.TotalAmount, &b.RemainingAmount, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
