// Package schema loads and validates relational schema descriptors from a
// content store, and hands them to the graph builder and rule generator.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
)

// Column describes a single column of a table, in declaration order.
type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key,omitempty"`
}

// ForeignKey is a declared foreign-key constraint on a table.
type ForeignKey struct {
	SourceColumn   string `json:"source_column"`
	TargetTable    string `json:"target_table"`
	TargetColumn   string `json:"target_column"`
	ConstraintName string `json:"constraint_name,omitempty"`
}

// Table is a single table descriptor. Columns is an ordered sequence; it is
// never treated as a set or map by callers.
type Table struct {
	TableName   string            `json:"table_name"`
	Columns     []Column          `json:"columns"`
	PrimaryKeys []string          `json:"primary_keys"`
	ForeignKeys []ForeignKey      `json:"foreign_keys"`
	Indexes     []json.RawMessage `json:"indexes"`
}

// Column looks up a column by exact, case-sensitive name. Returns false if
// no column on the table has that name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Descriptor is a validated schema: a database name, declared table count,
// and the tables themselves. TableOrder preserves the original JSON key
// order of the "tables" object, since relationship edges derived from a
// schema pass must be emitted in a deterministic, input-stable order.
type Descriptor struct {
	Database    string `json:"database"`
	TotalTables int    `json:"total_tables"`
	Tables      map[string]Table
	TableOrder  []string
}

// OrderedTables returns the tables in TableOrder, falling back to map
// iteration (unordered) only when TableOrder was never populated — callers
// that require determinism should always construct a Descriptor via
// UnmarshalJSON, which always sets it.
func (d *Descriptor) OrderedTables() []Table {
	tables := make([]Table, 0, len(d.Tables))
	if len(d.TableOrder) == len(d.Tables) {
		for _, name := range d.TableOrder {
			tables = append(tables, d.Tables[name])
		}
		return tables
	}
	for _, t := range d.Tables {
		tables = append(tables, t)
	}
	return tables
}

// descriptorWire mirrors Descriptor's JSON shape for the parts encoding/json
// can unmarshal directly; Tables order is recovered separately via a
// streaming decode pass.
type descriptorWire struct {
	Database    string           `json:"database"`
	TotalTables int              `json:"total_tables"`
	Tables      map[string]Table `json:"tables"`
}

// UnmarshalJSON implements a two-pass decode: the standard pass populates
// fields and the Tables map, a second token-level pass over the same bytes
// recovers the original key order of the "tables" object so edges derived
// from this schema can be emitted deterministically.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var wire descriptorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	order, err := tableKeyOrder(data)
	if err != nil {
		return err
	}

	d.Database = wire.Database
	d.TotalTables = wire.TotalTables
	d.Tables = wire.Tables
	d.TableOrder = order
	return nil
}

// tableKeyOrder streams the top-level JSON object looking for the "tables"
// key and returns the order in which its own keys appear.
func tableKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if _, err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in schema object", tok)
		}

		if key != "tables" {
			if err := skipValue(dec); err != nil {
				return nil, err
			}
			continue
		}

		return readObjectKeys(dec)
	}

	return nil, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) (json.Delim, error) {
	tok, err := dec.Token()
	if err != nil {
		return 0, err
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return 0, fmt.Errorf("expected delimiter %q, got %v", want, tok)
	}
	return d, nil
}

func readObjectKeys(dec *json.Decoder) ([]string, error) {
	if _, err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected non-string key %v", tok)
		}
		keys = append(keys, key)

		if err := skipValue(dec); err != nil {
			return nil, err
		}
	}

	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return keys, nil
}

// skipValue consumes and discards the next JSON value (scalar, array, or
// nested object) from dec.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	if _, ok := tok.(json.Delim); !ok {
		return nil // scalar already consumed
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// Validate runs structural checks per the schema descriptor contract.
// Returns an apperrors.Error with KindInputInvalid listing the first
// violation found.
func (d *Descriptor) Validate() error {
	if d.Database == "" {
		return apperrors.Invalidf("schema descriptor missing database name", nil)
	}
	if len(d.Tables) == 0 {
		return apperrors.Invalidf(fmt.Sprintf("schema %q declares zero tables", d.Database), nil)
	}

	for name, table := range d.Tables {
		if table.TableName == "" {
			return apperrors.Invalidf(fmt.Sprintf("table %q missing table_name", name), nil)
		}
		seen := make(map[string]bool, len(table.Columns))
		for _, col := range table.Columns {
			if col.Name == "" {
				return apperrors.Invalidf(fmt.Sprintf("table %q has a column with an empty name", table.TableName), nil)
			}
			seen[col.Name] = true
		}
		for _, pk := range table.PrimaryKeys {
			if !seen[pk] {
				return apperrors.Invalidf(fmt.Sprintf("table %q declares primary key %q not present in columns", table.TableName, pk), nil)
			}
		}
	}

	return nil
}
