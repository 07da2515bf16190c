package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tross/internal/apperr"
	"tross/internal/meta"
)

func intp(n int) *int           { return &n }
func floatp(f float64) *float64 { return &f }

func mustRule(t *testing.T, name string, f meta.FieldDef) *Rule {
	t.Helper()
	r, err := DeriveRule(name, f)
	require.NoError(t, err)
	return r
}

func TestDeriveRuleUnknownType(t *testing.T) {
	_, err := DeriveRule("x", meta.FieldDef{Type: "geopoint"})
	require.Error(t, err)
	assert.True(t, apperr.IsCategory(err, apperr.ConfigurationError))
}

func TestStringLengthAndPattern(t *testing.T) {
	r := mustRule(t, "login", meta.FieldDef{
		Type: meta.TypeString, MinLength: intp(3), MaxLength: intp(8),
		Pattern: "^[a-z0-9_]+$",
	})

	_, viol := r.Validate("login", "ok_login")
	assert.Nil(t, viol)

	_, viol = r.Validate("login", "ab")
	require.NotNil(t, viol)
	assert.Equal(t, KindLength, viol.Kind)

	_, viol = r.Validate("login", "toolonglogin")
	require.NotNil(t, viol)
	assert.Equal(t, KindLength, viol.Kind)

	_, viol = r.Validate("login", "BadCase")
	require.NotNil(t, viol)
	assert.Equal(t, KindPattern, viol.Kind)

	_, viol = r.Validate("login", 42)
	require.NotNil(t, viol)
	assert.Equal(t, KindType, viol.Kind)
}

func TestEmailAndPhoneFormat(t *testing.T) {
	email := mustRule(t, "email", meta.FieldDef{Type: meta.TypeEmail})
	_, viol := email.Validate("email", "a@b.com")
	assert.Nil(t, viol)
	_, viol = email.Validate("email", "not-an-email")
	require.NotNil(t, viol)
	assert.Equal(t, KindFormat, viol.Kind)

	phone := mustRule(t, "phone", meta.FieldDef{Type: meta.TypePhone})
	_, viol = phone.Validate("phone", "+7 (900) 123-45-67")
	assert.Nil(t, viol)
	_, viol = phone.Validate("phone", "call me")
	require.NotNil(t, viol)
	assert.Equal(t, KindFormat, viol.Kind)
}

func TestURLFormat(t *testing.T) {
	r := mustRule(t, "site", meta.FieldDef{Type: meta.TypeURL})
	_, viol := r.Validate("site", "https://example.com/x")
	assert.Nil(t, viol)
	_, viol = r.Validate("site", "ftp://example.com")
	require.NotNil(t, viol)
	_, viol = r.Validate("site", "nonsense")
	require.NotNil(t, viol)
}

func TestIntegerCoercion(t *testing.T) {
	r := mustRule(t, "qty", meta.FieldDef{Type: meta.TypeInteger, Min: floatp(1), Max: floatp(100)})

	// JSON-число приходит как float64
	v, viol := r.Validate("qty", float64(5))
	require.Nil(t, viol)
	assert.Equal(t, int64(5), v)

	v, viol = r.Validate("qty", "42")
	require.Nil(t, viol)
	assert.Equal(t, int64(42), v)

	_, viol = r.Validate("qty", 5.5)
	require.NotNil(t, viol)
	assert.Equal(t, KindType, viol.Kind)

	_, viol = r.Validate("qty", float64(0))
	require.NotNil(t, viol)
	assert.Equal(t, KindRange, viol.Kind)

	_, viol = r.Validate("qty", float64(101))
	require.NotNil(t, viol)
	assert.Equal(t, KindRange, viol.Kind)
}

func TestCurrencyNotNegativeByDefault(t *testing.T) {
	r := mustRule(t, "amount", meta.FieldDef{Type: meta.TypeCurrency})
	_, viol := r.Validate("amount", 10.5)
	assert.Nil(t, viol)
	_, viol = r.Validate("amount", -1.0)
	require.NotNil(t, viol)
	assert.Equal(t, KindRange, viol.Kind)

	// явный min разрешает отрицательные (например, корректировки)
	adj := mustRule(t, "adjustment", meta.FieldDef{Type: meta.TypeCurrency, Min: floatp(-1000)})
	_, viol = adj.Validate("adjustment", -50.0)
	assert.Nil(t, viol)
}

func TestBooleanCoercion(t *testing.T) {
	r := mustRule(t, "active", meta.FieldDef{Type: meta.TypeBoolean})

	v, viol := r.Validate("active", true)
	require.Nil(t, viol)
	assert.Equal(t, true, v)

	v, viol = r.Validate("active", "yes")
	require.Nil(t, viol)
	assert.Equal(t, true, v)

	_, viol = r.Validate("active", "maybe")
	require.NotNil(t, viol)
}

func TestDateAndTimestamp(t *testing.T) {
	d := mustRule(t, "scheduled_date", meta.FieldDef{Type: meta.TypeDate})
	_, viol := d.Validate("scheduled_date", "2026-08-24")
	assert.Nil(t, viol)
	_, viol = d.Validate("scheduled_date", "24.08.2026")
	require.NotNil(t, viol)
	_, viol = d.Validate("scheduled_date", "2026-02-30")
	require.NotNil(t, viol, "несуществующая дата")

	ts := mustRule(t, "started_at", meta.FieldDef{Type: meta.TypeTimestamp})
	_, viol = ts.Validate("started_at", "2026-08-24T10:00:00Z")
	assert.Nil(t, viol)
	_, viol = ts.Validate("started_at", "2026-08-24 10:00")
	require.NotNil(t, viol)
}

func TestTimeOfDay(t *testing.T) {
	r := mustRule(t, "opens_at", meta.FieldDef{Type: meta.TypeTime})
	for _, ok := range []string{"09:00", "23:59", "07:15:30"} {
		_, viol := r.Validate("opens_at", ok)
		assert.Nil(t, viol, ok)
	}
	for _, bad := range []string{"24:00", "9am", "12:61"} {
		_, viol := r.Validate("opens_at", bad)
		assert.NotNil(t, viol, bad)
	}
}

func TestEnumMembership(t *testing.T) {
	r := mustRule(t, "status", meta.FieldDef{
		Type: meta.TypeEnum, Values: []string{"draft", "sent", "paid"},
	})
	_, viol := r.Validate("status", "draft")
	assert.Nil(t, viol)
	_, viol = r.Validate("status", "cancelled")
	require.NotNil(t, viol)
	assert.Equal(t, KindEnum, viol.Kind)
}

func TestObjectType(t *testing.T) {
	r := mustRule(t, "terms", meta.FieldDef{Type: meta.TypeObject})
	_, viol := r.Validate("terms", map[string]any{"sla": "24h"})
	assert.Nil(t, viol)
	_, viol = r.Validate("terms", "not an object")
	require.NotNil(t, viol)
}

func TestRequiredAndCustomMessages(t *testing.T) {
	r := mustRule(t, "name", meta.FieldDef{
		Type: meta.TypeString, Required: true,
		Messages: map[string]string{"required": "укажите имя клиента"},
	})

	_, viol := r.Validate("name", nil)
	require.NotNil(t, viol)
	assert.Equal(t, KindRequired, viol.Kind)
	assert.Equal(t, "укажите имя клиента", viol.Message)

	// пробельная строка после нормализации — тоже пусто
	_, viol = r.Validate("name", "   ")
	require.NotNil(t, viol)
	assert.Equal(t, KindRequired, viol.Kind)
}

func TestOptionalEmptyPassesThrough(t *testing.T) {
	r := mustRule(t, "notes", meta.FieldDef{Type: meta.TypeText})
	v, viol := r.Validate("notes", nil)
	assert.Nil(t, viol)
	assert.Nil(t, v)
}
