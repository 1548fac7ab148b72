package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// ToolStore abstracts DB queries for testability.
type ToolStore interface {
	ListTools(ctx context.Context) ([]*toolRow, error)
}

type toolRow struct {
	Name        string
	Description sql.NullString
	Executor    string
	Parameters  string // JSONB as string
	Secrets     string // JSONB as string
}

// sqlToolStore is the real implementation using *sql.DB.
type sqlToolStore struct {
	db *sql.DB
}

func (s *sqlToolStore) ListTools(ctx context.Context) ([]*toolRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_name, description, executor, parameters, secrets
		FROM tool_definitions
		ORDER BY tool_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*toolRow
	for rows.Next() {
		var r toolRow
		if err := rows.Scan(&r.Name, &r.Description, &r.Executor, &r.Parameters, &r.Secrets); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// pgSecret mirrors one element of the secrets JSONB column.
type pgSecret struct {
	Name  string `json:"name"`
	Env   string `json:"env"`
	Item  string `json:"item"`
	Field string `json:"field"`
}

// LoadPostgres reads every row of tool_definitions once and builds a
// validated Registry. The registry stays immutable afterwards; changing
// the table requires a restart, which keeps the allow-list auditable.
func LoadPostgres(ctx context.Context, db *sql.DB) (*Registry, error) {
	return loadFromStore(ctx, &sqlToolStore{db: db})
}

func loadFromStore(ctx context.Context, store ToolStore) (*Registry, error) {
	rows, err := store.ListTools(ctx)
	if err != nil {
		return nil, &ConfigError{Detail: fmt.Sprintf("load tool_definitions: %v", err)}
	}
	if len(rows) == 0 {
		return nil, &ConfigError{Detail: "no tools defined"}
	}

	defs := make([]ToolDefinition, 0, len(rows))
	for _, row := range rows {
		def := ToolDefinition{
			Name:        row.Name,
			Description: row.Description.String,
			Executor:    row.Executor,
		}
		if row.Parameters != "" {
			if err := json.Unmarshal([]byte(row.Parameters), &def.Parameters); err != nil {
				return nil, &ConfigError{Tool: row.Name, Detail: fmt.Sprintf("invalid parameters json: %v", err)}
			}
		}
		if row.Secrets != "" && row.Secrets != "null" {
			var pgSecrets []pgSecret
			if err := json.Unmarshal([]byte(row.Secrets), &pgSecrets); err != nil {
				return nil, &ConfigError{Tool: row.Name, Detail: fmt.Sprintf("invalid secrets json: %v", err)}
			}
			for _, s := range pgSecrets {
				req, err := yamlSecret{Name: s.Name, Env: s.Env, Item: s.Item, Field: s.Field}.toRequirement(row.Name)
				if err != nil {
					return nil, err
				}
				def.Secrets = append(def.Secrets, req)
			}
		}
		defs = append(defs, def)
	}
	return New(defs)
}
