package validation

import (
	"fmt"

	"tross/internal/meta"
)

// Kind — вид нарушения. Ключ для переопределяемых сообщений.
type Kind string

const (
	KindRequired Kind = "required"
	KindType     Kind = "type"
	KindFormat   Kind = "format"
	KindLength   Kind = "length"
	KindPattern  Kind = "pattern"
	KindEnum     Kind = "enum"
	KindRange    Kind = "range"
)

// Violation — одно нарушение по конкретному полю.
type Violation struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// coerceFunc приводит и проверяет тип значения. Возвращает
// нормализованное значение либо нарушение (kind + текст).
type coerceFunc func(v any) (any, Kind, string)

// checkFunc — дополнительная проверка уже приведённого значения.
type checkFunc func(v any) (Kind, string)

// Rule — составное правило одного поля: базовая типовая проверка +
// модификаторы + required/optional + кастомные сообщения.
type Rule struct {
	Type     meta.FieldType
	Required bool

	coerce   coerceFunc
	checks   []checkFunc
	messages map[string]string
}

func (r *Rule) addCheck(c checkFunc) { r.checks = append(r.checks, c) }

// message — кастомный текст для вида нарушения, иначе дефолтный.
func (r *Rule) message(kind Kind, def string) string {
	if r.messages != nil {
		if m, ok := r.messages[string(kind)]; ok && m != "" {
			return m
		}
	}
	return def
}

// Validate проверяет значение. nil допустим для optional-полей и
// нарушение для required; непустое значение идёт через coerce и checks.
func (r *Rule) Validate(field string, v any) (any, *Violation) {
	if IsEmpty(v) {
		if r.Required {
			return nil, &Violation{
				Kind:    KindRequired,
				Field:   field,
				Message: r.message(KindRequired, fmt.Sprintf("field '%s' is required", field)),
			}
		}
		return v, nil
	}

	norm, kind, msg := r.coerce(v)
	if msg != "" {
		return nil, &Violation{Kind: kind, Field: field, Message: r.message(kind, msg)}
	}
	for _, check := range r.checks {
		if kind, msg := check(norm); msg != "" {
			return nil, &Violation{Kind: kind, Field: field, Message: r.message(kind, msg)}
		}
	}
	return norm, nil
}
