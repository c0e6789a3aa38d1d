package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for protocol state.
type Store struct {
	pool *pgxpool.Pool
}

// ComponentRow is a protocol component as stored.
type ComponentRow struct {
	ID               string
	Protocol         string
	ProtocolType     string
	FinancialType    string
	Tokens           []string
	Contracts        []string
	StaticAttributes map[string]string
	CreatedBlock     uint64
	CreatedTx        string
}

// BalanceRow is the latest balance of a token held by a component.
type BalanceRow struct {
	ComponentID string
	Token       string
	Balance     string
	BlockNumber uint64
	TxHash      string
}

// AttributeRow is the latest value of a component attribute.
type AttributeRow struct {
	ComponentID string
	Name        string
	Value       []byte
	BlockNumber uint64
}

// SlotRow is the latest value of a watched storage slot.
type SlotRow struct {
	Address     string
	Slot        []byte
	Value       []byte
	BlockNumber uint64
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertComponents inserts components. The first creation wins.
func (s *Store) UpsertComponents(ctx context.Context, rows []ComponentRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO protocol_components (
				id, protocol, protocol_type, financial_type, tokens, contracts,
				static_attributes, created_block, created_tx, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (id)
			DO UPDATE SET
				created_block = LEAST(protocol_components.created_block, EXCLUDED.created_block),
				updated_at = now()
		`,
			row.ID,
			row.Protocol,
			row.ProtocolType,
			row.FinancialType,
			row.Tokens,
			row.Contracts,
			row.StaticAttributes,
			int64(row.CreatedBlock),
			row.CreatedTx,
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// UpsertBalances stores balances unless a newer block already did.
func (s *Store) UpsertBalances(ctx context.Context, rows []BalanceRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO component_balances (component_id, token, balance, block_number, tx_hash, updated_at)
			VALUES ($1, $2, $3::numeric, $4, $5, now())
			ON CONFLICT (component_id, token)
			DO UPDATE SET
				balance = EXCLUDED.balance,
				block_number = EXCLUDED.block_number,
				tx_hash = EXCLUDED.tx_hash,
				updated_at = now()
			WHERE component_balances.block_number <= EXCLUDED.block_number
		`,
			row.ComponentID,
			row.Token,
			row.Balance,
			int64(row.BlockNumber),
			row.TxHash,
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// UpsertAttributes stores attribute values unless a newer block already did.
func (s *Store) UpsertAttributes(ctx context.Context, rows []AttributeRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO component_attributes (component_id, name, value, block_number, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (component_id, name)
			DO UPDATE SET
				value = EXCLUDED.value,
				block_number = EXCLUDED.block_number,
				updated_at = now()
			WHERE component_attributes.block_number <= EXCLUDED.block_number
		`,
			row.ComponentID,
			row.Name,
			row.Value,
			int64(row.BlockNumber),
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// UpsertSlots stores slot values unless a newer block already did.
func (s *Store) UpsertSlots(ctx context.Context, rows []SlotRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO contract_slots (address, slot, value, block_number, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (address, slot)
			DO UPDATE SET
				value = EXCLUDED.value,
				block_number = EXCLUDED.block_number,
				updated_at = now()
			WHERE contract_slots.block_number <= EXCLUDED.block_number
		`,
			row.Address,
			row.Slot,
			row.Value,
			int64(row.BlockNumber),
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
