package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"tross/internal/apperr"
	"tross/internal/meta"
	"tross/internal/pg"
)

// Record — запись сущности: системные колонки + данные по метаданным.
type Record struct {
	ID        string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Data      map[string]any
}

// Flatten — «плоский» вид для ответа API.
func (r *Record) Flatten() map[string]any {
	out := map[string]any{
		"id":         r.ID,
		"version":    r.Version,
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for k, v := range r.Data {
		if _, clash := out[k]; clash {
			continue
		}
		out[k] = v
	}
	return out
}

// Store — generic-хранилище записей поверх Postgres. Колонки мапятся из
// метаданных; id — ULID; version — оптимистическая блокировка.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy io.Reader
}

func NewStore(db *sql.DB) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{db: db, entropy: ulid.Monotonic(src, 0)}
}

func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// dataColumns — имена полей сущности в стабильном порядке.
func dataColumns(e *meta.Entity) []string {
	return e.FieldNames()
}

// Insert пишет новую запись. Нарушения ограничений базы переводятся в
// доменные ошибки.
func (s *Store) Insert(ctx context.Context, e *meta.Entity, data map[string]any) (*Record, error) {
	now := time.Now().UTC()
	rec := &Record{
		ID:        s.NewID(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Data:      data,
	}

	cols := []string{"id", "version", "created_at", "updated_at"}
	args := []any{rec.ID, rec.Version, rec.CreatedAt, rec.UpdatedAt}
	for _, name := range dataColumns(e) {
		v, ok := data[name]
		if !ok {
			continue
		}
		cols = append(cols, name)
		args = append(args, toDBValue(e.Fields[name].Type, v))
	}

	idents := make([]string, len(cols))
	holders := make([]string, len(cols))
	for i, c := range cols {
		idents[i] = pg.Ident(c)
		holders[i] = fmt.Sprintf("$%d", i+1)
	}

	q := fmt.Sprintf("insert into %s (%s) values (%s)",
		pg.Ident(pg.SafeTable(e.Table)),
		strings.Join(idents, ", "),
		strings.Join(holders, ", "))

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, pg.Translate(err, e, meta.OpCreate)
	}
	return rec, nil
}

// Get читает запись по id.
func (s *Store) Get(ctx context.Context, e *meta.Entity, id string) (*Record, error) {
	fields := dataColumns(e)
	q := fmt.Sprintf("select %s from %s where id = $1",
		selectList(fields), pg.Ident(pg.SafeTable(e.Table)))

	row := s.db.QueryRowContext(ctx, q, id)
	rec, err := scanRecord(row, e, fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "record not found")
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListParams — листинг: равенства по полям, сортировка, страница.
type ListParams struct {
	Filters map[string]string
	Sort    []SortKey
	Limit   int
	Offset  int
}

type SortKey struct {
	Field string
	Desc  bool
}

// List — страница записей + общее количество под теми же фильтрами.
// Неизвестные поля в фильтрах/сортировке молча игнорируются.
func (s *Store) List(ctx context.Context, e *meta.Entity, p ListParams) ([]*Record, int, error) {
	fields := dataColumns(e)
	tbl := pg.Ident(pg.SafeTable(e.Table))

	var where []string
	var args []any
	for _, name := range fields {
		v, ok := p.Filters[name]
		if !ok {
			continue
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s::text = $%d", pg.Ident(name), len(args)))
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " where " + strings.Join(where, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("select count(*) from %s%s", tbl, whereSQL), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderSQL := " order by " + pg.Ident("created_at") + " desc"
	if len(p.Sort) > 0 {
		var parts []string
		for _, k := range p.Sort {
			if !validSortField(e, k.Field) {
				continue
			}
			dir := "asc"
			if k.Desc {
				dir = "desc"
			}
			parts = append(parts, pg.Ident(k.Field)+" "+dir)
		}
		if len(parts) > 0 {
			orderSQL = " order by " + strings.Join(parts, ", ")
		}
	}

	limit := p.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	q := fmt.Sprintf("select %s from %s%s%s limit %d offset %d",
		selectList(fields), tbl, whereSQL, orderSQL, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows, e, fields)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// Update применяет patch при совпадении версии. Несовпадение — конфликт,
// отсутствие записи — not found.
func (s *Store) Update(ctx context.Context, e *meta.Entity, id string, expVersion int64, patch map[string]any) (*Record, error) {
	now := time.Now().UTC()

	sets := []string{
		"version = version + 1",
		fmt.Sprintf("%s = $1", pg.Ident("updated_at")),
	}
	args := []any{now}
	for _, name := range dataColumns(e) {
		v, ok := patch[name]
		if !ok {
			continue
		}
		args = append(args, toDBValue(e.Fields[name].Type, v))
		sets = append(sets, fmt.Sprintf("%s = $%d", pg.Ident(name), len(args)))
	}

	args = append(args, id)
	idArg := len(args)
	args = append(args, expVersion)
	verArg := len(args)

	q := fmt.Sprintf("update %s set %s where id = $%d and version = $%d",
		pg.Ident(pg.SafeTable(e.Table)), strings.Join(sets, ", "), idArg, verArg)

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, pg.Translate(err, e, meta.OpUpdate)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// либо записи нет, либо версия устарела
		cur, err := s.Get(ctx, e, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Newf(apperr.Conflict, "expected version %d", cur.Version).
			WithField("version")
	}
	return s.Get(ctx, e, id)
}

// Delete удаляет запись физически: ссылочную целостность держит база, а
// её отказ транслируется в DeleteBlocked.
func (s *Store) Delete(ctx context.Context, e *meta.Entity, id string) error {
	q := fmt.Sprintf("delete from %s where id = $1", pg.Ident(pg.SafeTable(e.Table)))
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return pg.Translate(err, e, meta.OpDelete)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.New(apperr.NotFound, "record not found")
	}
	return nil
}

// ===== вспомогательное =====

func selectList(fields []string) string {
	cols := []string{`"id"`, `"version"`, `"created_at"`, `"updated_at"`}
	for _, f := range fields {
		cols = append(cols, pg.Ident(f))
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, e *meta.Entity, fields []string) (*Record, error) {
	rec := &Record{Data: make(map[string]any, len(fields))}
	dest := []any{&rec.ID, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt}

	holders := make([]any, len(fields))
	for i := range fields {
		holders[i] = new(any)
		dest = append(dest, holders[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, name := range fields {
		v := *(holders[i].(*any))
		if v == nil {
			continue
		}
		rec.Data[name] = fromDBValue(e.Fields[name].Type, v)
	}
	return rec, nil
}

// toDBValue — значение для записи в колонку. Объекты — jsonb.
func toDBValue(t meta.FieldType, v any) any {
	if t == meta.TypeObject {
		if v == nil {
			return nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	}
	return v
}

// fromDBValue нормализует значение из драйвера к виду, который отдаёт
// валидация: числа, строки, time/date — как есть; jsonb — обратно в map.
func fromDBValue(t meta.FieldType, v any) any {
	switch t {
	case meta.TypeObject:
		var b []byte
		switch x := v.(type) {
		case []byte:
			b = x
		case string:
			b = []byte(x)
		default:
			return v
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return string(b)
		}
		return out
	case meta.TypeDate:
		if ts, ok := v.(time.Time); ok {
			return ts.Format("2006-01-02")
		}
	case meta.TypeTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339)
		}
	case meta.TypeCurrency, meta.TypeDecimal:
		// numeric может приехать строкой
		if sv, ok := v.(string); ok {
			return sv
		}
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func validSortField(e *meta.Entity, name string) bool {
	if meta.IsSystemField(name) {
		return true
	}
	_, ok := e.Fields[name]
	return ok
}
