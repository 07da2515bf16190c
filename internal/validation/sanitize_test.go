package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tross/internal/meta"
)

func fdef(t meta.FieldType) *meta.FieldDef { return &meta.FieldDef{Type: t} }

func TestSanitizeValuePerType(t *testing.T) {
	assert.Equal(t, "hello", SanitizeValue("  hello  ", fdef(meta.TypeString)))
	assert.Equal(t, "multi line", SanitizeValue(" multi line ", fdef(meta.TypeText)))

	// email и enum: lowercase + trim
	assert.Equal(t, "a@b.com", SanitizeValue("  A@B.COM ", fdef(meta.TypeEmail)))
	assert.Equal(t, "draft", SanitizeValue(" DRAFT ", fdef(meta.TypeEnum)))

	// телефон: только trim, форматирование сохраняется
	assert.Equal(t, "+7 (900) 123-45-67", SanitizeValue(" +7 (900) 123-45-67 ", fdef(meta.TypePhone)))

	// не-строковые классы проходят насквозь
	assert.Equal(t, 42.5, SanitizeValue(42.5, fdef(meta.TypeCurrency)))
	assert.Equal(t, true, SanitizeValue(true, fdef(meta.TypeBoolean)))
	obj := map[string]any{"k": "v"}
	assert.Equal(t, obj, SanitizeValue(obj, fdef(meta.TypeObject)))
}

func TestSanitizeValueNilAndMissingDef(t *testing.T) {
	assert.Nil(t, SanitizeValue(nil, fdef(meta.TypeString)))
	assert.Nil(t, SanitizeValue(nil, nil))

	// без описания — защитный trim для строк, остальное не трогаем
	assert.Equal(t, "x", SanitizeValue("  x ", nil))
	assert.Equal(t, 7, SanitizeValue(7, nil))
}

func TestSanitizeValueIdempotent(t *testing.T) {
	cases := []struct {
		v   any
		def *meta.FieldDef
	}{
		{"  hello  ", fdef(meta.TypeString)},
		{" A@B.COM ", fdef(meta.TypeEmail)},
		{" DRAFT ", fdef(meta.TypeEnum)},
		{" +7 900 ", fdef(meta.TypePhone)},
	}
	for _, tc := range cases {
		once := SanitizeValue(tc.v, tc.def)
		twice := SanitizeValue(once, tc.def)
		assert.Equal(t, once, twice, "нормализация обязана быть идемпотентной")
	}
}

func TestSanitizeMapDoesNotMutateInput(t *testing.T) {
	e := &meta.Entity{
		Name: "customer",
		Fields: map[string]meta.FieldDef{
			"email": {Type: meta.TypeEmail},
		},
	}
	in := map[string]any{"email": " X@Y.COM ", "unknown": "  raw "}
	out := SanitizeMap(in, e)

	assert.Equal(t, "x@y.com", out["email"])
	assert.Equal(t, "raw", out["unknown"], "неизвестное поле — только trim")
	assert.Equal(t, " X@Y.COM ", in["email"], "вход не мутирует")
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty("   \t "))
	assert.False(t, IsEmpty("x"))
	assert.False(t, IsEmpty(0), "ноль — значение, не пустота")
	assert.False(t, IsEmpty(false))
}
