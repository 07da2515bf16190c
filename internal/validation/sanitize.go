package validation

import (
	"strings"

	"tross/internal/meta"
)

// SanitizeValue — типо-зависимая нормализация значения ДО валидации,
// чтобы случайный пробел не превращался в ложную ошибку длины/формата.
// nil проходит насквозь. Без описания поля — защитный trim для строк и
// ничего больше.
func SanitizeValue(v any, def *meta.FieldDef) any {
	if v == nil {
		return nil
	}
	if def == nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		return v
	}

	s, isStr := v.(string)
	if !isStr {
		return v
	}

	switch def.Type {
	case meta.TypeEmail, meta.TypeEnum:
		return strings.ToLower(strings.TrimSpace(s))
	case meta.TypeString, meta.TypeText, meta.TypePhone, meta.TypeURL, meta.TypeTime:
		// телефон: только trim, форматирование сохраняем
		return strings.TrimSpace(s)
	default:
		// числа/булевы/даты/объекты не трогаем
		return v
	}
}

// SanitizeMap нормализует payload по метаданным сущности. Возвращает
// новую карту, вход не мутирует.
func SanitizeMap(payload map[string]any, e *meta.Entity) map[string]any {
	out := make(map[string]any, len(payload))
	for name, v := range payload {
		if def, ok := e.Fields[name]; ok {
			out[name] = SanitizeValue(v, &def)
		} else {
			out[name] = SanitizeValue(v, nil)
		}
	}
	return out
}

// IsEmpty — пусто ли значение для required-проверки: nil и строки из
// одних пробелов считаются пустыми.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
