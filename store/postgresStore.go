package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store over a namespace/key/value jsonb table for
// deployments where a single shared JSON file is not enough. Each operation
// runs in one transaction, so the read-modify-write session helpers keep
// their within-process guarantees across connections too.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS kv_store (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB NOT NULL,
			PRIMARY KEY (namespace, key)
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Put(namespace, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	query := `
		INSERT INTO kv_store (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key) DO UPDATE SET value = $3`
	if _, err := s.db.Exec(query, namespace, key, raw); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *PostgresStore) Get(namespace, key string) (any, bool, error) {
	if key == "" {
		ns, err := s.Namespace(namespace)
		if err != nil {
			return nil, false, err
		}
		if len(ns) == 0 {
			return nil, false, nil
		}
		return ns, true, nil
	}

	var raw []byte
	row := s.db.QueryRow(`SELECT value FROM kv_store WHERE namespace = $1 AND key = $2`, namespace, key)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Namespace(namespace string) (map[string]any, error) {
	return s.queryKeys(`SELECT key, value FROM kv_store WHERE namespace = $1`, namespace)
}

func (s *PostgresStore) QueryPrefix(namespace, prefix string) (map[string]any, error) {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return s.queryKeys(
		`SELECT key, value FROM kv_store WHERE namespace = $1 AND key LIKE $2`,
		namespace, escaped+"%",
	)
}

func (s *PostgresStore) queryKeys(query string, args ...any) (map[string]any, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace: %w", err)
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendEvent(namespace string, event map[string]any) error {
	return s.mutateRecord(namespace, func(record map[string]any) {
		appendEvent(record, namespace, event)
	})
}

func (s *PostgresStore) CompactSession(namespace string, keepLast int) (map[string]any, error) {
	var compacted map[string]any
	err := s.mutateRecord(namespace, func(record map[string]any) {
		compactSession(record, keepLast)
		compacted = record
	})
	if err != nil {
		return nil, err
	}
	return compacted, nil
}

// mutateRecord loads a whole session record, applies fn and writes every key
// back inside one transaction.
func (s *PostgresStore) mutateRecord(namespace string, fn func(record map[string]any)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT key, value FROM kv_store WHERE namespace = $1 FOR UPDATE`, namespace)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	record := map[string]any{}
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan record row: %w", err)
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			rows.Close()
			return fmt.Errorf("failed to decode record key %s: %w", key, err)
		}
		record[key] = value
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	fn(record)

	for key, value := range record {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode record key %s: %w", key, err)
		}
		query := `
			INSERT INTO kv_store (namespace, key, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (namespace, key) DO UPDATE SET value = $3`
		if _, err := tx.Exec(query, namespace, key, raw); err != nil {
			return fmt.Errorf("failed to write record key %s: %w", key, err)
		}
	}

	return tx.Commit()
}
