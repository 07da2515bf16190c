package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tross/internal/apperr"
	"tross/internal/meta"
)

// BuilderFunc строит базовое правило для семантического типа.
type BuilderFunc func(f meta.FieldDef) *Rule

// builders — единственная точка расширения по типам. Новый семантический
// тип = одна запись здесь, без ветвлений где-либо ещё.
var builders = map[meta.FieldType]BuilderFunc{
	meta.TypeString:    stringBuilder(meta.TypeString),
	meta.TypeText:      stringBuilder(meta.TypeText),
	meta.TypeEmail:     patternStringBuilder(meta.TypeEmail, emailRe, "must be a valid email"),
	meta.TypePhone:     patternStringBuilder(meta.TypePhone, phoneRe, "must be a valid phone number"),
	meta.TypeURL:       urlBuilder,
	meta.TypeTime:      patternStringBuilder(meta.TypeTime, timeRe, "must match HH:MM or HH:MM:SS"),
	meta.TypeInteger:   integerBuilder,
	meta.TypeDecimal:   floatBuilder(meta.TypeDecimal),
	meta.TypeCurrency:  floatBuilder(meta.TypeCurrency),
	meta.TypeBoolean:   booleanBuilder,
	meta.TypeDate:      dateBuilder,
	meta.TypeTimestamp: timestampBuilder,
	meta.TypeEnum:      enumBuilder,
	meta.TypeObject:    objectBuilder,
}

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ().\-]{4,19}$`)
	timeRe  = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD
)

// DeriveRule — правило поля из его описания: базовый builder по типу,
// затем строковые/числовые модификаторы, затем required и сообщения.
func DeriveRule(name string, f meta.FieldDef) (*Rule, error) {
	build, ok := builders[f.Type]
	if !ok {
		return nil, apperr.Config("field %q: no rule builder for type %q", name, f.Type)
	}
	r := build(f)
	r.messages = f.Messages

	if f.Type.StringClass() {
		applyStringModifiers(r, f)
	}
	if f.Type.NumericClass() {
		applyNumericModifiers(r, f)
	}
	r.Required = f.Required
	return r, nil
}

func applyStringModifiers(r *Rule, f meta.FieldDef) {
	if f.MinLength != nil {
		min := *f.MinLength
		r.addCheck(func(v any) (Kind, string) {
			if s, ok := v.(string); ok && len([]rune(s)) < min {
				return KindLength, fmt.Sprintf("must be at least %d characters", min)
			}
			return "", ""
		})
	}
	if f.MaxLength != nil {
		max := *f.MaxLength
		r.addCheck(func(v any) (Kind, string) {
			if s, ok := v.(string); ok && len([]rune(s)) > max {
				return KindLength, fmt.Sprintf("must be at most %d characters", max)
			}
			return "", ""
		})
	}
	if f.Pattern != "" {
		re := regexp.MustCompile(f.Pattern) // компилируемость проверена линтером
		r.addCheck(func(v any) (Kind, string) {
			if s, ok := v.(string); ok && !re.MatchString(s) {
				return KindPattern, "does not match the expected format"
			}
			return "", ""
		})
	}
	// enum-подобное ограничение значений и для строковых типов
	if len(f.Values) > 0 && f.Type != meta.TypeEnum {
		values := f.Values
		r.addCheck(func(v any) (Kind, string) {
			s, _ := v.(string)
			if !containsFold(values, s) {
				return KindEnum, fmt.Sprintf("value %q is not allowed", s)
			}
			return "", ""
		})
	}
}

func applyNumericModifiers(r *Rule, f meta.FieldDef) {
	if f.Min != nil {
		min := *f.Min
		r.addCheck(func(v any) (Kind, string) {
			if asFloat(v) < min {
				return KindRange, fmt.Sprintf("must be >= %v", min)
			}
			return "", ""
		})
	}
	if f.Max != nil {
		max := *f.Max
		r.addCheck(func(v any) (Kind, string) {
			if asFloat(v) > max {
				return KindRange, fmt.Sprintf("must be <= %v", max)
			}
			return "", ""
		})
	}
	// валюта не бывает отрицательной, если явно не разрешили min'ом
	if f.Type == meta.TypeCurrency && f.Min == nil {
		r.addCheck(func(v any) (Kind, string) {
			if asFloat(v) < 0 {
				return KindRange, "must not be negative"
			}
			return "", ""
		})
	}
}

// ===== базовые builder'ы =====

func stringBuilder(t meta.FieldType) BuilderFunc {
	return func(meta.FieldDef) *Rule {
		return &Rule{Type: t, coerce: coerceString}
	}
}

func patternStringBuilder(t meta.FieldType, re *regexp.Regexp, msg string) BuilderFunc {
	return func(meta.FieldDef) *Rule {
		return &Rule{Type: t, coerce: func(v any) (any, Kind, string) {
			s, kind, errMsg := coerceString(v)
			if errMsg != "" {
				return nil, kind, errMsg
			}
			if !re.MatchString(s.(string)) {
				return nil, KindFormat, msg
			}
			return s, "", ""
		}}
	}
}

func urlBuilder(meta.FieldDef) *Rule {
	return &Rule{Type: meta.TypeURL, coerce: func(v any) (any, Kind, string) {
		s, kind, errMsg := coerceString(v)
		if errMsg != "" {
			return nil, kind, errMsg
		}
		u, err := url.Parse(s.(string))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, KindFormat, "must be a valid http(s) URL"
		}
		return s, "", ""
	}}
}

func integerBuilder(meta.FieldDef) *Rule {
	return &Rule{Type: meta.TypeInteger, coerce: func(v any) (any, Kind, string) {
		switch t := v.(type) {
		case float64:
			// JSON-числа приходят как float64 — проверяем целостность
			if t != float64(int64(t)) {
				return nil, KindType, "must be an integer"
			}
			return int64(t), "", ""
		case int:
			return int64(t), "", ""
		case int64:
			return t, "", ""
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			if err != nil {
				return nil, KindType, "must be an integer"
			}
			return n, "", ""
		default:
			return nil, KindType, "must be an integer"
		}
	}}
}

func floatBuilder(t meta.FieldType) BuilderFunc {
	return func(meta.FieldDef) *Rule {
		return &Rule{Type: t, coerce: func(v any) (any, Kind, string) {
			switch x := v.(type) {
			case float64:
				return x, "", ""
			case int:
				return float64(x), "", ""
			case int64:
				return float64(x), "", ""
			case string:
				f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
				if err != nil {
					return nil, KindType, "must be a number"
				}
				return f, "", ""
			default:
				return nil, KindType, "must be a number"
			}
		}}
	}
}

func booleanBuilder(meta.FieldDef) *Rule {
	return &Rule{Type: meta.TypeBoolean, coerce: func(v any) (any, Kind, string) {
		switch t := v.(type) {
		case bool:
			return t, "", ""
		case string:
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "1", "yes":
				return true, "", ""
			case "false", "0", "no":
				return false, "", ""
			}
			return nil, KindType, "must be a boolean"
		default:
			return nil, KindType, "must be a boolean"
		}
	}}
}

func dateBuilder(meta.FieldDef) *Rule {
	return &Rule{Type: meta.TypeDate, coerce: func(v any) (any, Kind, string) {
		s, kind, errMsg := coerceString(v)
		if errMsg != "" {
			return nil, kind, errMsg
		}
		str := s.(string)
		if !dateRe.MatchString(str) {
			return nil, KindFormat, "must match YYYY-MM-DD"
		}
		if _, err := time.Parse("2006-01-02", str); err != nil {
			return nil, KindFormat, "invalid date"
		}
		return str, "", ""
	}}
}

func timestampBuilder(meta.FieldDef) *Rule {
	return &Rule{Type: meta.TypeTimestamp, coerce: func(v any) (any, Kind, string) {
		s, kind, errMsg := coerceString(v)
		if errMsg != "" {
			return nil, kind, errMsg
		}
		if _, err := time.Parse(time.RFC3339, s.(string)); err != nil {
			return nil, KindFormat, "must be an RFC3339 timestamp"
		}
		return s, "", ""
	}}
}

func enumBuilder(f meta.FieldDef) *Rule {
	values := f.Values
	return &Rule{Type: meta.TypeEnum, coerce: func(v any) (any, Kind, string) {
		s, kind, errMsg := coerceString(v)
		if errMsg != "" {
			return nil, kind, errMsg
		}
		str := s.(string)
		if !containsFold(values, str) {
			return nil, KindEnum, fmt.Sprintf("value %q is not allowed", str)
		}
		return str, "", ""
	}}
}

func objectBuilder(meta.FieldDef) *Rule {
	return &Rule{Type: meta.TypeObject, coerce: func(v any) (any, Kind, string) {
		if _, ok := v.(map[string]any); !ok {
			return nil, KindType, "must be an object"
		}
		return v, "", ""
	}}
}

// ===== утилиты =====

func coerceString(v any) (any, Kind, string) {
	if s, ok := v.(string); ok {
		return s, "", ""
	}
	// числа в строки автоматически не форматируем — честнее ошибка
	return nil, KindType, "must be a string"
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	}
	return 0
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
