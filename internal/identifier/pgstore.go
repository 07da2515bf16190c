package identifier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tross/internal/pg"
)

// PGStore — запрос максимума по Postgres-таблице сущности.
type PGStore struct {
	DB *sql.DB
}

func (s *PGStore) MaxIdentifier(ctx context.Context, table, field, prefix string) (string, bool, error) {
	// сортировка сперва по длине: номер растёт за четыре знака, и чисто
	// лексикографический порядок ставил бы -9999 выше -10000
	q := fmt.Sprintf(
		`select %s from %s where %s like $1 order by length(%s) desc, %s desc limit 1`,
		pg.Ident(field), pg.Ident(pg.SafeTable(table)), pg.Ident(field), pg.Ident(field), pg.Ident(field))

	var max string
	err := s.DB.QueryRowContext(ctx, q, prefix+"%").Scan(&max)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return max, true, nil
}
