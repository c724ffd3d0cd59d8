package dex

import (
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	address TEXT PRIMARY KEY,
	token0 TEXT NOT NULL,
	token1 TEXT NOT NULL,
	reserve0 TEXT NOT NULL,
	reserve1 TEXT NOT NULL,
	dex TEXT NOT NULL,
	updated_block INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pools_token0 ON pools(token0);
CREATE INDEX IF NOT EXISTS idx_pools_token1 ON pools(token1);
`

// Store persists discovered pools in sqlite so restarts don't lose the
// liquidity index.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool db: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertPool(pair *Pair, block uint64) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO pools (address, token0, token1, reserve0, reserve1, dex, updated_block) VALUES (?, ?, ?, ?, ?, ?, ?)",
		strings.ToLower(pair.Address.Hex()),
		pair.Token0, pair.Token1,
		pair.Reserve0.String(), pair.Reserve1.String(),
		pair.DEX, block,
	)
	return err
}

// BatchUpsert writes many pools inside one transaction, for index rebuilds.
func (s *Store) BatchUpsert(pairs []*Pair, block uint64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO pools (address, token0, token1, reserve0, reserve1, dex, updated_block) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, pair := range pairs {
		_, err := stmt.Exec(
			strings.ToLower(pair.Address.Hex()),
			pair.Token0, pair.Token1,
			pair.Reserve0.String(), pair.Reserve1.String(),
			pair.DEX, block,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateReserves(addr common.Address, reserve0, reserve1 *big.Int, block uint64) error {
	_, err := s.db.Exec(
		"UPDATE pools SET reserve0 = ?, reserve1 = ?, updated_block = ? WHERE address = ?",
		reserve0.String(), reserve1.String(), block, strings.ToLower(addr.Hex()),
	)
	return err
}

func (s *Store) Pool(addr common.Address) (*Pair, error) {
	row := s.db.QueryRow(
		"SELECT address, token0, token1, reserve0, reserve1, dex FROM pools WHERE address = ?",
		strings.ToLower(addr.Hex()),
	)
	return scanPair(row)
}

// PoolsByToken returns every pool with token on either side.
func (s *Store) PoolsByToken(token string) ([]*Pair, error) {
	token = NormalizeTokenString(token)
	rows, err := s.db.Query(
		"SELECT address, token0, token1, reserve0, reserve1, dex FROM pools WHERE token0 = ? OR token1 = ?",
		token, token,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*Pair
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}

// stats for monitoring index size

func (s *Store) Stats() (map[string]int64, error) {
	stats := make(map[string]int64)

	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM pools").Scan(&count); err != nil {
		return nil, err
	}
	stats["pool_entries"] = count

	if err := s.db.QueryRow("SELECT COUNT(DISTINCT token0) + COUNT(DISTINCT token1) FROM pools").Scan(&count); err != nil {
		return nil, err
	}
	stats["token_sides"] = count

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPair(row rowScanner) (*Pair, error) {
	var addr, token0, token1, r0, r1, dexName string
	if err := row.Scan(&addr, &token0, &token1, &r0, &r1, &dexName); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("pool not found")
		}
		return nil, err
	}

	reserve0, ok := new(big.Int).SetString(r0, 10)
	if !ok {
		return nil, fmt.Errorf("bad reserve0 %q for pool %s", r0, addr)
	}
	reserve1, ok := new(big.Int).SetString(r1, 10)
	if !ok {
		return nil, fmt.Errorf("bad reserve1 %q for pool %s", r1, addr)
	}

	return &Pair{
		Address:  common.HexToAddress(addr),
		Token0:   token0,
		Token1:   token1,
		Reserve0: reserve0,
		Reserve1: reserve1,
		DEX:      dexName,
	}, nil
}
