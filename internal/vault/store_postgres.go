package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"idv/internal/flow/record"
	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

// PostgresStore persists vault entries. Values are stored as JSON so scalar
// and list fields share one column; the scrubbed flag withholds the value
// from decrypt results without deleting it.
//
// Schema:
//
//	CREATE TABLE vault_entries (
//	    party_id  UUID        NOT NULL,
//	    field_id  TEXT        NOT NULL,
//	    value     JSONB,
//	    scrubbed  BOOLEAN     NOT NULL DEFAULT FALSE,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (party_id, field_id)
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed vault store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// storedValue is the JSON shape in the value column.
type storedValue struct {
	Scalar string   `json:"scalar,omitempty"`
	List   []string `json:"list,omitempty"`
	IsList bool     `json:"is_list,omitempty"`
}

func encodeValue(v record.Value) ([]byte, error) {
	return json.Marshal(storedValue{Scalar: v.Scalar(), List: v.Items(), IsList: v.IsList()})
}

func decodeValue(raw []byte) (record.Value, error) {
	var sv storedValue
	if err := json.Unmarshal(raw, &sv); err != nil {
		return record.Value{}, err
	}
	if sv.IsList {
		return record.List(sv.List...), nil
	}
	return record.String(sv.Scalar), nil
}

func (s *PostgresStore) Save(ctx context.Context, partyID id.PartyID, fieldID record.FieldID, value record.Value, scrubbed bool) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("encode vault value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vault_entries (party_id, field_id, value, scrubbed, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (party_id, field_id)
		DO UPDATE SET value = EXCLUDED.value, scrubbed = EXCLUDED.scrubbed, updated_at = now()`,
		partyID.String(), string(fieldID), encoded, scrubbed,
	)
	if err != nil {
		return fmt.Errorf("save vault entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, partyID id.PartyID, fields []record.FieldID) (*Result, error) {
	fieldIDs := make([]string, len(fields))
	for i, f := range fields {
		fieldIDs[i] = string(f)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT field_id, value, scrubbed
		FROM vault_entries
		WHERE party_id = $1 AND field_id = ANY($2)`,
		partyID.String(), pq.Array(fieldIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("load vault entries: %w", err)
	}
	defer rows.Close()

	result := &Result{Values: make(map[record.FieldID]record.Value)}
	found := false
	for rows.Next() {
		var (
			fieldID  string
			raw      []byte
			scrubbed bool
		)
		if err := rows.Scan(&fieldID, &raw, &scrubbed); err != nil {
			return nil, fmt.Errorf("scan vault entry: %w", err)
		}
		found = true
		if scrubbed {
			result.Scrubbed = append(result.Scrubbed, record.FieldID(fieldID))
			continue
		}
		value, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode vault value for %s: %w", fieldID, err)
		}
		result.Values[record.FieldID(fieldID)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vault entries: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no vault entries for party %s: %w", partyID, sentinel.ErrNotFound)
	}
	return result, nil
}
