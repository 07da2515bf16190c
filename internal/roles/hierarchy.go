package roles

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"tross/internal/apperr"
	"tross/internal/meta"
)

// Role — одна запись иерархии: имя и числовой приоритет.
// Список упорядочен от младшей привилегии к старшей.
type Role struct {
	Name     string `yaml:"name" json:"name"`
	Priority int    `yaml:"priority" json:"priority"`
}

// Hierarchy — кэш иерархии ролей. Загружается один раз на старте,
// перезагрузка — только явная (admin endpoint), заменой под write-lock.
// Читатели в полёте могут видеть прежнюю версию — это допустимо.
type Hierarchy struct {
	mu      sync.RWMutex
	ordered []Role
	ranks   map[string]int
}

// NewHierarchy валидирует список и строит кэш.
func NewHierarchy(list []Role) (*Hierarchy, error) {
	h := &Hierarchy{}
	if err := h.Replace(list); err != nil {
		return nil, err
	}
	return h, nil
}

// Replace атомарно заменяет иерархию. Требования: список непуст,
// имена уникальны, приоритеты строго возрастают.
func (h *Hierarchy) Replace(list []Role) error {
	if len(list) == 0 {
		return apperr.Config("role hierarchy is empty")
	}
	ranks := make(map[string]int, len(list))
	prev := 0
	for i, r := range list {
		name := strings.ToLower(strings.TrimSpace(r.Name))
		if name == "" || name == meta.RoleNone {
			return apperr.Config("role %d has invalid name %q", i, r.Name)
		}
		if _, dup := ranks[name]; dup {
			return apperr.Config("duplicate role %q", name)
		}
		if i > 0 && r.Priority <= prev {
			return apperr.Config("role priorities must strictly increase (%q: %d after %d)",
				name, r.Priority, prev)
		}
		prev = r.Priority
		ranks[name] = i
	}

	cp := make([]Role, len(list))
	copy(cp, list)
	for i := range cp {
		cp[i].Name = strings.ToLower(strings.TrimSpace(cp[i].Name))
	}

	h.mu.Lock()
	h.ordered = cp
	h.ranks = ranks
	h.mu.Unlock()
	return nil
}

// Rank — индекс роли в иерархии, -1 для неизвестной.
func (h *Hierarchy) Rank(role string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i, ok := h.ranks[strings.ToLower(strings.TrimSpace(role))]; ok {
		return i
	}
	return -1
}

// Lowest — имя младшей роли.
func (h *Hierarchy) Lowest() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ordered[0].Name
}

// Roles — копия списка (для meta endpoint'ов и диагностики).
func (h *Hierarchy) Roles() []Role {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Role, len(h.ordered))
	copy(out, h.ordered)
	return out
}

// Normalize приводит вход к имени роли. Принимает имя либо числовой
// приоритет (legacy). Неразрешимое значение — младшая роль: закрываемся,
// а не открываемся.
func (h *Hierarchy) Normalize(roleOrPriority string) string {
	v := strings.ToLower(strings.TrimSpace(roleOrPriority))

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.ranks[v]; ok {
		return v
	}
	if p, err := strconv.Atoi(v); err == nil {
		for _, r := range h.ordered {
			if r.Priority == p {
				return r.Name
			}
		}
	}
	return h.ordered[0].Name
}

// HasPermission — достаточно ли роли для требования required.
// required == none — false безусловно, даже для старшей роли.
// Неизвестное требование — тоже false (deny-by-default).
func (h *Hierarchy) HasPermission(userRole, required string) bool {
	required = strings.ToLower(strings.TrimSpace(required))
	switch required {
	case "", meta.RoleNone:
		return false
	case meta.RoleMinimum:
		required = h.Lowest()
	}
	rr := h.Rank(required)
	if rr < 0 {
		return false
	}
	return h.Rank(h.Normalize(userRole)) >= rr
}

// String — диагностическое представление ("customer<technician<...").
func (h *Hierarchy) String() string {
	rs := h.Roles()
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = fmt.Sprintf("%s(%d)", r.Name, r.Priority)
	}
	return strings.Join(names, " < ")
}
