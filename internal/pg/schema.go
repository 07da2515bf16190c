package pg

import (
	"fmt"
	"sort"
	"strings"

	"tross/internal/meta"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// Ident — экранированный идентификатор для динамического SQL.
func Ident(s string) string { return sqlIdent(s) }

// SafeTable страхует имя таблицы от ключевых слов.
func SafeTable(t string) string {
	t = strings.ToLower(t)
	if isReserved(t) {
		t = "e_" + t
	}
	return t
}

func mapType(f meta.FieldDef) (string, error) {
	switch f.Type {
	case meta.TypeString, meta.TypeText, meta.TypeEmail, meta.TypePhone,
		meta.TypeURL, meta.TypeTime, meta.TypeEnum:
		// enum — как text; значения контролирует схема валидации
		return "text", nil
	case meta.TypeInteger:
		return "bigint", nil
	case meta.TypeDecimal:
		return "double precision", nil
	case meta.TypeCurrency:
		return "numeric(18,2)", nil
	case meta.TypeBoolean:
		return "boolean", nil
	case meta.TypeDate:
		return "date", nil
	case meta.TypeTimestamp:
		return "timestamp with time zone", nil
	case meta.TypeObject:
		return "jsonb", nil
	default:
		return "", fmt.Errorf("unknown type: %s", f.Type)
	}
}

// GenerateDDL возвращает карту key -> SQL. Ключи сортируются при
// применении: сначала служебные таблицы, затем сущности, затем FK.
// Колонки НЕ получают not null по required: required сужается по роли
// на уровне схемы валидации, база хранит что прошло.
func GenerateDDL(reg *meta.Registry) (map[string]string, error) {
	out := make(map[string]string, reg.Len()+2)

	// иерархия ролей живёт в той же базе
	out["000_roles"] = `create table if not exists roles (
  "name" text primary key,
  "priority" bigint not null unique
);
`

	var sb strings.Builder
	var fkSb strings.Builder

	for _, e := range reg.All() {
		tbl := SafeTable(e.Table)

		cols := []string{
			`"id" text primary key`,
			`"version" bigint not null`,
			`"created_at" timestamp with time zone not null`,
			`"updated_at" timestamp with time zone not null`,
		}
		seen := map[string]struct{}{"id": {}, "version": {}, "created_at": {}, "updated_at": {}}

		for _, name := range e.FieldNames() {
			f := e.Fields[name]
			lower := strings.ToLower(name)
			if _, exists := seen[lower]; exists {
				return nil, fmt.Errorf("%s: field %q duplicates a system column", e.Name, name)
			}
			seen[lower] = struct{}{}

			typ, err := mapType(f)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", e.Name, name, err)
			}
			cols = append(cols, fmt.Sprintf("%s %s null", sqlIdent(name), typ))
		}

		fmt.Fprintf(&sb, "create table if not exists %s (\n  %s\n);\n",
			sqlIdent(tbl), strings.Join(cols, ",\n  "))

		// уникальный индекс по identity-полю: источник истины для
		// минтинга номеров, генератор лишь предлагает кандидата
		if e.IdentityField != "" {
			fmt.Fprintf(&sb, "create unique index if not exists %s_%s_uq on %s(%s);\n",
				tbl, strings.ToLower(e.IdentityField),
				sqlIdent(tbl), sqlIdent(e.IdentityField))
		}

		// FK — второй фазой, когда все таблицы уже есть
		for _, field := range sortedKeys(e.ForeignKeys) {
			fk := e.ForeignKeys[field]
			fmt.Fprintf(&fkSb,
				"alter table %s add constraint %s_%s_fk foreign key (%s) references %s(id) on delete restrict;\n",
				sqlIdent(tbl),
				tbl, strings.ToLower(field),
				sqlIdent(field),
				sqlIdent(SafeTable(fk.Table)))
		}
	}

	out["100_tables"] = sb.String()
	if fkSb.Len() > 0 {
		out["200_foreign_keys"] = fkSb.String()
	}
	return out, nil
}

func sortedKeys(m map[string]meta.ForeignKey) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
