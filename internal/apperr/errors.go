package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category — категория доменной ошибки. Присваивается в точке возникновения,
// никогда не вычисляется задним числом из текста сообщения.
type Category string

const (
	ConfigurationError Category = "configuration_error"
	PermissionDenied   Category = "permission_denied"
	ValidationFailed   Category = "validation_failed"
	Conflict           Category = "conflict"
	NotFoundReference  Category = "not_found_reference"
	DeleteBlocked      Category = "delete_blocked"
	NotFound           Category = "not_found"
)

// Error — ошибка, которую ядро отдаёт наружу: категория + сообщение,
// опционально поле и детали. Внутренности движка (пути, коды, таблицы)
// сюда не попадают.
type Error struct {
	Category Category       `json:"category"`
	Message  string         `json:"message"`
	Field    string         `json:"field,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Category, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func New(cat Category, msg string) *Error {
	return &Error{Category: cat, Message: msg}
}

func Newf(cat Category, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...)}
}

// WithField возвращает ту же ошибку с привязкой к полю.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) WithDetail(key string, val any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = val
	return e
}

// Config — ошибка конфигурации метаданных. Фатальна на старте.
func Config(format string, args ...any) *Error {
	return Newf(ConfigurationError, format, args...)
}

// Permission — отказ по полям. fields — ВСЕ поля, к которым у роли нет
// доступа, одним списком (не первое попавшееся).
func Permission(op string, fields []string) *Error {
	e := Newf(PermissionDenied, "operation %s not permitted for fields: %s", op, strings.Join(fields, ", "))
	e.WithDetail("fields", fields)
	e.WithDetail("operation", op)
	if len(fields) == 1 {
		e.Field = fields[0]
	}
	return e
}

func Validation(field, msg string) *Error {
	return &Error{Category: ValidationFailed, Message: msg, Field: field}
}

// HTTPStatus — маппинг категории на статус ответа.
func (e *Error) HTTPStatus() int {
	switch e.Category {
	case PermissionDenied:
		return http.StatusForbidden
	case ValidationFailed:
		return http.StatusBadRequest
	case Conflict, DeleteBlocked:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case NotFoundReference:
		// ссылка на несуществующую запись в теле запроса — вина клиента
		return http.StatusUnprocessableEntity
	case ConfigurationError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsCategory — проверка категории через errors.As на стороне вызывающего.
func IsCategory(err error, cat Category) bool {
	var e *Error
	return errors.As(err, &e) && e.Category == cat
}
