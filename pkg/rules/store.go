package rules

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/database"
)

// Store persists and retrieves rulesets by id, independently of the KG
// they were generated from.
type Store interface {
	Put(ctx context.Context, rs *Ruleset) error
	Get(ctx context.Context, rulesetID string) (*Ruleset, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, rulesetID string) error
}

// MemoryStore is an in-process Store for tests and small deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Ruleset
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Ruleset)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Put(ctx context.Context, rs *Ruleset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rs.RulesetID] = rs
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, rulesetID string) (*Ruleset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.data[rulesetID]
	if !ok {
		return nil, apperrors.NotFoundf("ruleset", rulesetID)
	}
	return rs, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Delete(ctx context.Context, rulesetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[rulesetID]; !ok {
		return apperrors.NotFoundf("ruleset", rulesetID)
	}
	delete(s.data, rulesetID)
	return nil
}

// PostgresStore persists rulesets in a reconciliation_rulesets table, one
// row per ruleset, rules stored as a jsonb array. Grounded on the same
// marshal-to-jsonb CRUD shape as graphstore.PostgresStore.
type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Put(ctx context.Context, rs *Ruleset) error {
	rulesJSON, err := json.Marshal(rs.Rules)
	if err != nil {
		return apperrors.Invalidf("marshal ruleset rules", err)
	}
	schemasJSON, err := json.Marshal(rs.Schemas)
	if err != nil {
		return apperrors.Invalidf("marshal ruleset schemas", err)
	}

	const query = `
		INSERT INTO reconciliation_rulesets (ruleset_id, ruleset_name, schemas, rules, generated_from_kg, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ruleset_id) DO UPDATE SET
			ruleset_name = EXCLUDED.ruleset_name,
			schemas = EXCLUDED.schemas,
			rules = EXCLUDED.rules,
			generated_from_kg = EXCLUDED.generated_from_kg`

	if _, err := s.db.Exec(ctx, query, rs.RulesetID, rs.RulesetName, schemasJSON, rulesJSON, rs.GeneratedFromKG, rs.CreatedAt); err != nil {
		return apperrors.New(apperrors.KindDBQuery, "put ruleset "+rs.RulesetID, true, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, rulesetID string) (*Ruleset, error) {
	const query = `SELECT ruleset_id, ruleset_name, schemas, rules, generated_from_kg, created_at FROM reconciliation_rulesets WHERE ruleset_id = $1`

	rs := &Ruleset{}
	var schemasJSON, rulesJSON []byte
	row := s.db.QueryRow(ctx, query, rulesetID)
	if err := row.Scan(&rs.RulesetID, &rs.RulesetName, &schemasJSON, &rulesJSON, &rs.GeneratedFromKG, &rs.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NotFoundf("ruleset", rulesetID)
		}
		return nil, apperrors.New(apperrors.KindDBQuery, "get ruleset "+rulesetID, true, err)
	}
	if err := json.Unmarshal(schemasJSON, &rs.Schemas); err != nil {
		return nil, apperrors.Invalidf("ruleset "+rulesetID+" has malformed schemas", err)
	}
	if err := json.Unmarshal(rulesJSON, &rs.Rules); err != nil {
		return nil, apperrors.Invalidf("ruleset "+rulesetID+" has malformed rules", err)
	}
	return rs, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT ruleset_id FROM reconciliation_rulesets ORDER BY ruleset_id`)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "list rulesets", true, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.New(apperrors.KindDBQuery, "scan ruleset id", true, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, rulesetID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reconciliation_rulesets WHERE ruleset_id = $1`, rulesetID)
	if err != nil {
		return apperrors.New(apperrors.KindDBQuery, "delete ruleset "+rulesetID, true, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundf("ruleset", rulesetID)
	}
	return nil
}
