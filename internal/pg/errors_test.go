package pg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tross/internal/apperr"
	"tross/internal/meta"
)

func invoiceEntity() *meta.Entity {
	return &meta.Entity{
		Name:  "invoice",
		Table: "invoices",
		Fields: map[string]meta.FieldDef{
			"number":      {Type: meta.TypeString},
			"customer_id": {Type: meta.TypeString},
		},
		ForeignKeys: map[string]meta.ForeignKey{
			"customer_id": {Table: "customers", DisplayName: "customer"},
		},
	}
}

func asAppErr(t *testing.T, err error) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	ae, ok := err.(*apperr.Error)
	require.True(t, ok, "ожидалась доменная ошибка, получено: %v", err)
	return ae
}

func TestTranslateNil(t *testing.T) {
	assert.NoError(t, Translate(nil, invoiceEntity(), meta.OpCreate))
}

func TestTranslateForeignKeyOnInsert(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23503",
		ConstraintName: "invoices_customer_id_fk",
		Detail:         `Key (customer_id)=(01HC) is not present in table "customers".`,
	}

	ae := asAppErr(t, Translate(pgErr, invoiceEntity(), meta.OpCreate))
	assert.Equal(t, apperr.NotFoundReference, ae.Category)
	assert.Equal(t, "customer_id", ae.Field)
	assert.Contains(t, ae.Message, "customer", "display_name из метаданных")
}

func TestTranslateForeignKeyFieldFromDetailFallback(t *testing.T) {
	// чужое имя constraint'а — поле достаём из detail
	pgErr := &pgconn.PgError{
		Code:           "23503",
		ConstraintName: "legacy_constraint",
		Detail:         `Key (customer_id)=(01HC) is not present in table "customers".`,
	}
	ae := asAppErr(t, Translate(pgErr, invoiceEntity(), meta.OpUpdate))
	assert.Equal(t, apperr.NotFoundReference, ae.Category)
	assert.Equal(t, "customer_id", ae.Field)
}

func TestTranslateDeleteBlocked(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:   "23503",
		Detail: `Key (id)=(01HC) is still referenced from table "invoices".`,
	}
	ae := asAppErr(t, Translate(pgErr, invoiceEntity(), meta.OpDelete))
	assert.Equal(t, apperr.DeleteBlocked, ae.Category)
	assert.Equal(t, "invoices", ae.Details["referenced_by"])
}

func TestTranslateDeleteBlockedWithoutDetail(t *testing.T) {
	// detail не распознан — общий ярлык, не отказ перевода
	ae := asAppErr(t, Translate(&pgconn.PgError{Code: "23503"}, invoiceEntity(), meta.OpDelete))
	assert.Equal(t, apperr.DeleteBlocked, ae.Category)
	assert.Equal(t, "another record", ae.Details["referenced_by"])
}

func TestTranslateUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "invoices_number_uq",
		Detail:         `Key (number)=(INV-2026-0001) already exists.`,
	}
	ae := asAppErr(t, Translate(pgErr, invoiceEntity(), meta.OpCreate))
	assert.Equal(t, apperr.Conflict, ae.Category)
	assert.Equal(t, "number", ae.Field)
}

func TestTranslateCheckViolation(t *testing.T) {
	ae := asAppErr(t, Translate(&pgconn.PgError{Code: "23514"}, invoiceEntity(), meta.OpCreate))
	assert.Equal(t, apperr.ValidationFailed, ae.Category)
}

func TestTranslateNotNull(t *testing.T) {
	ae := asAppErr(t, Translate(&pgconn.PgError{Code: "23502", ColumnName: "amount"},
		invoiceEntity(), meta.OpCreate))
	assert.Equal(t, apperr.ValidationFailed, ae.Category)
	assert.Equal(t, "amount", ae.Field)
}

func TestTranslateMalformedLiterals(t *testing.T) {
	for _, code := range []string{"22007", "22008", "22P02", "22003", "22001"} {
		ae := asAppErr(t, Translate(&pgconn.PgError{Code: code}, invoiceEntity(), meta.OpCreate))
		assert.Equal(t, apperr.ValidationFailed, ae.Category, code)
	}
}

func TestTranslateUnrecognizedPassesThrough(t *testing.T) {
	// незнакомый SQLSTATE и не-pg ошибки уходят как есть — наверху они
	// станут opaque 500 без внутренностей движка
	raw := &pgconn.PgError{Code: "57014", Message: "canceling statement"}
	err := Translate(raw, invoiceEntity(), meta.OpCreate)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))

	plain := fmt.Errorf("dial tcp: connection refused")
	assert.Equal(t, plain, Translate(plain, invoiceEntity(), meta.OpCreate))
}

func TestFieldFromConstraint(t *testing.T) {
	e := invoiceEntity()
	assert.Equal(t, "customer_id", fieldFromConstraint("invoices_customer_id_fk", e))
	assert.Equal(t, "number", fieldFromConstraint("invoices_number_uq", e))
	assert.Equal(t, "", fieldFromConstraint("other_table_field_fk", e))
	assert.Equal(t, "", fieldFromConstraint("", e))
}
