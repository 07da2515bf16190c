package pg

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"tross/internal/apperr"
	"tross/internal/meta"
)

// Классификация нарушений — строго по SQLSTATE, присвоенному движком в
// точке отказа. Извлечение имени поля из текста constraint'а/detail —
// best-effort: не нашли — отдаём общий ярлык, это допустимая неточность.

const (
	codeForeignKey   = "23503"
	codeUnique       = "23505"
	codeCheck        = "23514"
	codeNotNull      = "23502"
	codeBadDatetime  = "22007"
	codeDatetimeOvf  = "22008"
	codeBadText      = "22P02"
	codeNumericOvf   = "22003"
	codeStringLength = "22001"
)

var (
	// `Key (customer_id)=(01H...) is not present in table "customers".`
	detailKeyRe = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// `... is still referenced from table "invoices".`
	detailRefRe = regexp.MustCompile(`referenced from table "([^"]+)"`)
)

// Translate превращает ошибку хранилища в доменную. Всё, что не
// распознано, возвращается как есть — наверх уйдёт opaque failure без
// внутренних деталей движка.
func Translate(err error, e *meta.Entity, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeForeignKey:
		if op == meta.OpDelete {
			// запись ещё на кого-то ссылаются — удаление блокировано
			refTable := "another record"
			if m := detailRefRe.FindStringSubmatch(pgErr.Detail); m != nil {
				refTable = m[1]
			}
			return apperr.Newf(apperr.DeleteBlocked,
				"record is still referenced by %s", refTable).
				WithDetail("referenced_by", refTable)
		}
		field := fieldFromConstraint(pgErr.ConstraintName, e)
		if field == "" {
			field = fieldFromDetail(pgErr.Detail)
		}
		display := referenceDisplay(e, field)
		return apperr.Newf(apperr.NotFoundReference, "%s does not exist", display).
			WithField(field)

	case codeUnique:
		field := fieldFromConstraint(pgErr.ConstraintName, e)
		if field == "" {
			field = fieldFromDetail(pgErr.Detail)
		}
		display := field
		if display == "" {
			display = "value"
		}
		return apperr.Newf(apperr.Conflict, "%s already exists", display).
			WithField(field)

	case codeCheck:
		field := fieldFromConstraint(pgErr.ConstraintName, e)
		return apperr.Validation(field, "value is outside the allowed range")

	case codeNotNull:
		return apperr.Validation(pgErr.ColumnName, "value is required")

	case codeBadDatetime, codeDatetimeOvf, codeBadText, codeNumericOvf, codeStringLength:
		return apperr.Validation("", "malformed value")
	}

	return err
}

// fieldFromConstraint снимает с имени constraint'а префикс таблицы и
// суффикс _fk/_uq/_fkey/_key, оставляя имя колонки. Имена constraint'ов
// минтит GenerateDDL, поэтому формат известен; чужие имена дают "".
func fieldFromConstraint(constraint string, e *meta.Entity) string {
	if constraint == "" || e == nil {
		return ""
	}
	name := strings.ToLower(constraint)
	tbl := SafeTable(e.Table) + "_"
	if !strings.HasPrefix(name, tbl) {
		return ""
	}
	name = strings.TrimPrefix(name, tbl)
	for _, suffix := range []string{"_fkey", "_fk", "_uq", "_key"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return ""
}

func fieldFromDetail(detail string) string {
	if m := detailKeyRe.FindStringSubmatch(detail); m != nil {
		// составной ключ: берём первую колонку
		parts := strings.Split(m[1], ",")
		return strings.TrimSpace(parts[0])
	}
	return ""
}

// referenceDisplay — человекочитаемое имя ссылки из метаданных.
func referenceDisplay(e *meta.Entity, field string) string {
	if e != nil && field != "" {
		if fk, ok := e.ForeignKeys[field]; ok && fk.DisplayName != "" {
			return fk.DisplayName
		}
	}
	if field != "" {
		return "referenced " + field
	}
	return "referenced record"
}
