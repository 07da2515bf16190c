package access

import (
	"sort"
	"strings"
	"sync"

	"tross/internal/apperr"
	"tross/internal/meta"
	"tross/internal/roles"
)

// Controller вычисляет множества доступных полей по тройке
// (сущность, роль, операция) и фильтрует данные в обе стороны.
// Результаты детерминированы, кэш — явный, с очисткой для тестов.
type Controller struct {
	hierarchy *roles.Hierarchy

	mu    sync.RWMutex
	cache map[string]map[string]struct{}
}

func NewController(h *roles.Hierarchy) *Controller {
	return &Controller{
		hierarchy: h,
		cache:     make(map[string]map[string]struct{}),
	}
}

// ClearCache сбрасывает кэш (тесты, смена иерархии).
func (c *Controller) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]map[string]struct{})
	c.mu.Unlock()
}

// FieldsForOperation — множество полей, доступных роли на операции.
// Поле включается, если его требование не none и ранг роли достаточен.
// Поле без записи в объединённой карте доступа не включается никогда.
func (c *Controller) FieldsForOperation(e *meta.Entity, role, op string) map[string]struct{} {
	role = c.hierarchy.Normalize(role)
	key := e.Name + "|" + role + "|" + op

	c.mu.RLock()
	if set, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return set
	}
	c.mu.RUnlock()

	set := make(map[string]struct{})
	for name, fa := range e.MergedAccess() {
		if c.hierarchy.HasPermission(role, fa.ForOp(op)) {
			set[name] = struct{}{}
		}
	}

	// пересчёт для того же ключа детерминирован, поэтому перезапись
	// при гонке первой записи безвредна
	c.mu.Lock()
	c.cache[key] = set
	c.mu.Unlock()
	return set
}

// FilterRecord проецирует запись на читаемые ролью поля.
func (c *Controller) FilterRecord(rec map[string]any, e *meta.Entity, role string) map[string]any {
	if rec == nil {
		return nil
	}
	allowed := c.FieldsForOperation(e, role, meta.OpRead)
	out := make(map[string]any, len(allowed))
	for name, v := range rec {
		if _, ok := allowed[name]; ok {
			out[name] = v
		}
	}
	return out
}

// FilterData — то же для списка; форма (список) сохраняется.
func (c *Controller) FilterData(recs []map[string]any, e *meta.Entity, role string) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, c.FilterRecord(r, e, role))
	}
	return out
}

// ValidateFieldAccess собирает ВСЕ поля payload'а, которые роль не может
// трогать на данной операции, и возвращает один PermissionDenied со всем
// списком. Поля, неизвестные метаданным вовсе, здесь не ошибка — их
// молча уберёт схема валидации.
func (c *Controller) ValidateFieldAccess(payload map[string]any, e *meta.Entity, role, op string) error {
	allowed := c.FieldsForOperation(e, role, op)
	merged := e.MergedAccess()

	var denied []string
	for name := range payload {
		if _, ok := allowed[name]; ok {
			continue
		}
		_, inAccess := merged[name]
		_, inFields := e.Fields[name]
		if !inAccess && !inFields && !meta.IsSystemField(name) {
			continue // неизвестное поле — не наша юрисдикция
		}
		denied = append(denied, name)
	}
	if len(denied) == 0 {
		return nil
	}
	sort.Strings(denied)
	return apperr.Permission(op, denied)
}

// FilterWritableFields молча выбрасывает из payload поля, которые роль не
// может писать. Защитный финальный фильтр, в отличие от строгого
// ValidateFieldAccess ничего не сообщает.
func (c *Controller) FilterWritableFields(payload map[string]any, e *meta.Entity, role, op string) map[string]any {
	allowed := c.FieldsForOperation(e, role, op)
	out := make(map[string]any, len(payload))
	for name, v := range payload {
		if _, ok := allowed[name]; ok {
			out[name] = v
		}
	}
	return out
}

// ReadableFieldNames — отсортированный список читаемых полей (для SQL
// select и meta endpoint'ов).
func (c *Controller) ReadableFieldNames(e *meta.Entity, role string) []string {
	set := c.FieldsForOperation(e, role, meta.OpRead)
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CanDelete — может ли роль удалить запись сущности. Удаление — операция
// над записью целиком; требованием служит delete-правило identity-поля,
// а при его отсутствии — самое строгое delete-правило сущности.
func (c *Controller) CanDelete(e *meta.Entity, role string) bool {
	role = c.hierarchy.Normalize(role)
	merged := e.MergedAccess()

	if e.IdentityField != "" {
		if fa, ok := merged[e.IdentityField]; ok && fa.Delete != "" && fa.Delete != meta.RoleNone {
			return c.hierarchy.HasPermission(role, fa.Delete)
		}
	}
	best := ""
	for _, fa := range merged {
		req := strings.TrimSpace(fa.Delete)
		if req == "" || req == meta.RoleNone {
			continue
		}
		if best == "" || c.rankOf(req) > c.rankOf(best) {
			best = req
		}
	}
	if best == "" {
		return false
	}
	return c.hierarchy.HasPermission(role, best)
}

func (c *Controller) rankOf(req string) int {
	if req == meta.RoleMinimum {
		return 0
	}
	return c.hierarchy.Rank(req)
}
