package roles

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile — формат YAML-файла с исходной иерархией.
type seedFile struct {
	Roles []Role `yaml:"roles"`
}

// LoadSeed читает иерархию из YAML-файла (используется без БД и для
// первичного наполнения таблицы roles).
func LoadSeed(path string) ([]Role, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Roles, nil
}

// Seed наливает роли в таблицу (idempotent upsert по имени).
func Seed(ctx context.Context, db *sql.DB, list []Role) error {
	for _, r := range list {
		_, err := db.ExecContext(ctx,
			`insert into roles (name, priority) values ($1, $2)
			 on conflict (name) do update set priority = excluded.priority`,
			r.Name, r.Priority)
		if err != nil {
			return fmt.Errorf("seed role %q: %w", r.Name, err)
		}
	}
	return nil
}

// LoadFromDB читает иерархию из таблицы roles, упорядоченную по приоритету.
func LoadFromDB(ctx context.Context, db *sql.DB) ([]Role, error) {
	rows, err := db.QueryContext(ctx,
		`select name, priority from roles order by priority asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.Name, &r.Priority); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
