package meta

import (
	"sort"
	"strings"
)

// FieldType — семантический тип поля. Фиксированный набор; расширение —
// только добавлением новой константы и builder'а в validation.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeText      FieldType = "text"
	TypeEmail     FieldType = "email"
	TypePhone     FieldType = "phone"
	TypeURL       FieldType = "url"
	TypeInteger   FieldType = "integer"
	TypeDecimal   FieldType = "decimal"
	TypeCurrency  FieldType = "currency"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeTime      FieldType = "time"
	TypeTimestamp FieldType = "timestamp"
	TypeEnum      FieldType = "enum"
	TypeObject    FieldType = "object"
)

// KnownTypes — для линтера и реестра builder'ов.
var KnownTypes = map[FieldType]struct{}{
	TypeString: {}, TypeText: {}, TypeEmail: {}, TypePhone: {}, TypeURL: {},
	TypeInteger: {}, TypeDecimal: {}, TypeCurrency: {}, TypeBoolean: {},
	TypeDate: {}, TypeTime: {}, TypeTimestamp: {}, TypeEnum: {}, TypeObject: {},
}

// StringClass — типы, к которым применимы строковые модификаторы
// (длина, pattern, trim).
func (t FieldType) StringClass() bool {
	switch t {
	case TypeString, TypeText, TypeEmail, TypePhone, TypeURL, TypeTime:
		return true
	}
	return false
}

// NumericClass — типы с min/max по значению.
func (t FieldType) NumericClass() bool {
	switch t {
	case TypeInteger, TypeDecimal, TypeCurrency:
		return true
	}
	return false
}

// FieldDef описывает одно поле сущности.
type FieldDef struct {
	Type      FieldType `yaml:"type"`
	Required  bool      `yaml:"required,omitempty"`
	Min       *float64  `yaml:"min,omitempty"`
	Max       *float64  `yaml:"max,omitempty"`
	MinLength *int      `yaml:"min_length,omitempty"`
	MaxLength *int      `yaml:"max_length,omitempty"`
	Pattern   string    `yaml:"pattern,omitempty"`
	Values    []string  `yaml:"values,omitempty"`
	Default   any       `yaml:"default,omitempty"`
	// Messages — переопределение текста ошибки по виду нарушения
	// (required, type, format, length, pattern, enum, range).
	Messages map[string]string `yaml:"messages,omitempty"`
}

// RoleNone — сентинел "операция запрещена всем", в т.ч. старшей роли.
const RoleNone = "none"

// RoleMinimum — маркер "достаточно младшей роли иерархии" в базовой
// карте доступа. Разворачивается контроллером доступа.
const RoleMinimum = "*"

// FieldAccess — минимальная роль на каждую операцию (или none).
type FieldAccess struct {
	Create string `yaml:"create"`
	Read   string `yaml:"read"`
	Update string `yaml:"update"`
	Delete string `yaml:"delete"`
}

// ForOp возвращает требование для операции. Пустая строка = записи нет.
func (fa FieldAccess) ForOp(op string) string {
	switch op {
	case OpCreate:
		return fa.Create
	case OpRead:
		return fa.Read
	case OpUpdate:
		return fa.Update
	case OpDelete:
		return fa.Delete
	}
	return ""
}

// Операции ядра.
const (
	OpCreate = "create"
	OpRead   = "read"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ForeignKey — данные для человекочитаемых ошибок по ссылкам.
type ForeignKey struct {
	Table       string `yaml:"table"`
	DisplayName string `yaml:"display_name"`
}

// IdentifierConfig — настройка последовательного номера документа
// (например WO-2026-0001).
type IdentifierConfig struct {
	Prefix string `yaml:"prefix"`
	Field  string `yaml:"field"`
}

// Entity — декларативное описание сущности. После загрузки не мутирует.
type Entity struct {
	Name            string                 `yaml:"entity"`
	Table           string                 `yaml:"table"`
	IdentityField   string                 `yaml:"identity_field,omitempty"`
	Fields          map[string]FieldDef    `yaml:"fields"`
	FieldAccess     map[string]FieldAccess `yaml:"field_access"`
	RequiredFields  []string               `yaml:"required_fields,omitempty"`
	ImmutableFields []string               `yaml:"immutable_fields,omitempty"`
	ForeignKeys     map[string]ForeignKey  `yaml:"foreign_keys,omitempty"`
	Identifier      *IdentifierConfig      `yaml:"identifier,omitempty"`
}

func (e *Entity) Field(name string) (FieldDef, bool) {
	f, ok := e.Fields[name]
	return f, ok
}

func (e *Entity) IsRequired(name string) bool {
	if f, ok := e.Fields[name]; ok && f.Required {
		return true
	}
	for _, n := range e.RequiredFields {
		if n == name {
			return true
		}
	}
	return false
}

func (e *Entity) IsImmutable(name string) bool {
	for _, n := range e.ImmutableFields {
		if n == name {
			return true
		}
	}
	return false
}

// FieldNames — имена полей в стабильном порядке (map в YAML порядок не хранит).
func (e *Entity) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for n := range e.Fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MergedAccess — карта доступа сущности поверх универсальной базовой.
// Поле, отсутствующее в результате, запрещено для всех операций.
func (e *Entity) MergedAccess() map[string]FieldAccess {
	out := make(map[string]FieldAccess, len(e.FieldAccess)+len(baselineAccess))
	for name, fa := range baselineAccess {
		out[name] = fa
	}
	if e.IdentityField != "" {
		// человекочитаемый номер: читаем все, пишет только ядро
		if _, overridden := e.FieldAccess[e.IdentityField]; !overridden {
			out[e.IdentityField] = FieldAccess{
				Create: RoleNone, Read: RoleMinimum, Update: RoleNone, Delete: RoleNone,
			}
		}
	}
	for name, fa := range e.FieldAccess {
		out[name] = fa
	}
	return out
}

// baselineAccess — общие системные поля всех сущностей: читаются любой
// известной ролью, не пишутся никем.
var baselineAccess = map[string]FieldAccess{
	"id":         {Create: RoleNone, Read: RoleMinimum, Update: RoleNone, Delete: RoleNone},
	"version":    {Create: RoleNone, Read: RoleMinimum, Update: RoleNone, Delete: RoleNone},
	"created_at": {Create: RoleNone, Read: RoleMinimum, Update: RoleNone, Delete: RoleNone},
	"updated_at": {Create: RoleNone, Read: RoleMinimum, Update: RoleNone, Delete: RoleNone},
}

// SystemFields — колонки, которые ведёт хранилище, а не клиент.
var SystemFields = []string{"id", "version", "created_at", "updated_at"}

func IsSystemField(name string) bool {
	for _, s := range SystemFields {
		if s == name {
			return true
		}
	}
	return false
}

// Registry — замороженный набор сущностей, ключ — имя в нижнем регистре.
type Registry struct {
	entities map[string]*Entity
}

func NewRegistry(entities []*Entity) *Registry {
	r := &Registry{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		r.entities[strings.ToLower(e.Name)] = e
	}
	return r
}

// Get — поиск сущности по имени, регистронезависимо.
func (r *Registry) Get(name string) (*Entity, bool) {
	e, ok := r.entities[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// All — сущности в стабильном порядке по имени.
func (r *Registry) All() []*Entity {
	keys := make([]string, 0, len(r.entities))
	for k := range r.entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.entities[k])
	}
	return out
}

func (r *Registry) Len() int { return len(r.entities) }
