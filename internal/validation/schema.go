package validation

import (
	"sort"
	"sync"

	"tross/internal/access"
	"tross/internal/apperr"
	"tross/internal/meta"
	"tross/internal/roles"
)

// Schema — собранный, неизменяемый набор правил для
// (сущность, операция, роль). Payload проверяется и ЧИСТИТСЯ: поля вне
// схемы молча выбрасываются, а не валят запрос целиком.
type Schema struct {
	Entity string
	Op     string
	Role   string // нормализованное имя; "" — системный вызов без роли

	rules    map[string]*Rule
	defaults map[string]any
}

// Fields — имена полей схемы в стабильном порядке.
func (s *Schema) Fields() []string {
	out := make([]string, 0, len(s.rules))
	for name := range s.rules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has — входит ли поле в схему.
func (s *Schema) Has(name string) bool {
	_, ok := s.rules[name]
	return ok
}

// Validate применяет схему: defaults для отсутствующих полей (create),
// затем правила по каждому полю схемы. Возвращает очищенный payload либо
// одну ValidationFailed со всеми нарушениями в деталях.
func (s *Schema) Validate(payload map[string]any) (map[string]any, error) {
	cleaned := make(map[string]any, len(payload))
	var violations []Violation

	for _, name := range s.Fields() {
		rule := s.rules[name]

		v, present := payload[name]
		if !present {
			if def, ok := s.defaults[name]; ok {
				v, present = def, true
			}
		}
		if !present {
			if rule.Required {
				if _, viol := rule.Validate(name, nil); viol != nil {
					violations = append(violations, *viol)
				}
			}
			continue
		}

		norm, viol := rule.Validate(name, v)
		if viol != nil {
			violations = append(violations, *viol)
			continue
		}
		cleaned[name] = norm
	}

	if len(violations) > 0 {
		e := apperr.Validation(violations[0].Field, violations[0].Message)
		e.WithDetail("violations", violations)
		return nil, e
	}
	return cleaned, nil
}

// Builder собирает и кэширует схемы. Кэш — на время жизни процесса;
// повторная сборка по тому же ключу детерминирована, поэтому гонка
// первых записей безвредна. ClearCache — для тестов.
type Builder struct {
	hierarchy *roles.Hierarchy
	access    *access.Controller

	mu    sync.RWMutex
	cache map[string]*Schema
}

func NewBuilder(h *roles.Hierarchy, ac *access.Controller) *Builder {
	return &Builder{
		hierarchy: h,
		access:    ac,
		cache:     make(map[string]*Schema),
	}
}

func (b *Builder) ClearCache() {
	b.mu.Lock()
	b.cache = make(map[string]*Schema)
	b.mu.Unlock()
}

// EntitySchema — схема для (сущность, операция, роль).
// create: поля, create-доступные роли; required = required метаданных ∩
// это множество (роль не просят о том, что ей нельзя). update: все
// неиммутабельные update-доступные, все optional. Пустая роль — системный
// вызов без ограничений, под отдельным ключом кэша.
func (b *Builder) EntitySchema(e *meta.Entity, op, role string) (*Schema, error) {
	roleKey := "~system"
	if role != "" {
		role = b.hierarchy.Normalize(role)
		roleKey = role
	}
	key := e.Name + "|" + op + "|" + roleKey

	b.mu.RLock()
	if s, ok := b.cache[key]; ok {
		b.mu.RUnlock()
		return s, nil
	}
	b.mu.RUnlock()

	s, err := b.build(e, op, role)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.cache[key] = s
	b.mu.Unlock()
	return s, nil
}

func (b *Builder) build(e *meta.Entity, op, role string) (*Schema, error) {
	s := &Schema{
		Entity:   e.Name,
		Op:       op,
		Role:     role,
		rules:    make(map[string]*Rule),
		defaults: make(map[string]any),
	}

	var allowed map[string]struct{}
	if role != "" {
		allowed = b.access.FieldsForOperation(e, role, op)
	}

	for name, f := range e.Fields {
		if meta.IsSystemField(name) {
			continue
		}
		if op == meta.OpUpdate && e.IsImmutable(name) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}

		rule, err := DeriveRule(name, f)
		if err != nil {
			return nil, err
		}
		switch op {
		case meta.OpCreate:
			rule.Required = e.IsRequired(name)
			if f.Default != nil {
				s.defaults[name] = f.Default
			}
		default:
			rule.Required = false
		}
		s.rules[name] = rule
	}
	return s, nil
}
