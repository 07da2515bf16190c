package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tross/internal/apperr"
	"tross/internal/meta"
	"tross/internal/roles"
)

// GET /api/meta — список сущностей с их таблицами.
func (s *Server) MetaListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]gin.H, 0, s.Registry.Len())
		for _, e := range s.Registry.All() {
			item := gin.H{
				"entity": e.Name,
				"table":  e.Table,
			}
			if e.Identifier != nil {
				item["identifier_prefix"] = e.Identifier.Prefix
			}
			out = append(out, item)
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/meta/:entity — описание сущности глазами роли вызывающего:
// типы и ограничения полей плюс множества доступных полей по операциям.
// Клиенту отдаём только то, что его роль вообще может видеть.
func (s *Server) MetaEntityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.Registry.Get(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		role := s.roleFrom(c)

		readable := s.Access.FieldsForOperation(e, role, meta.OpRead)
		fields := make(map[string]gin.H, len(readable))
		for _, name := range e.FieldNames() {
			if _, ok := readable[name]; !ok {
				continue
			}
			f := e.Fields[name]
			fd := gin.H{"type": f.Type}
			if e.IsRequired(name) {
				fd["required"] = true
			}
			if e.IsImmutable(name) {
				fd["immutable"] = true
			}
			if len(f.Values) > 0 {
				fd["values"] = f.Values
			}
			if f.MinLength != nil {
				fd["min_length"] = *f.MinLength
			}
			if f.MaxLength != nil {
				fd["max_length"] = *f.MaxLength
			}
			if f.Min != nil {
				fd["min"] = *f.Min
			}
			if f.Max != nil {
				fd["max"] = *f.Max
			}
			fields[name] = fd
		}

		c.JSON(http.StatusOK, gin.H{
			"entity": e.Name,
			"role":   role,
			"fields": fields,
			"access": gin.H{
				"create": s.sortedOp(e, role, meta.OpCreate),
				"read":   s.Access.ReadableFieldNames(e, role),
				"update": s.sortedOp(e, role, meta.OpUpdate),
				"delete": s.Access.CanDelete(e, role),
			},
		})
	}
}

func (s *Server) sortedOp(e *meta.Entity, role, op string) []string {
	set := s.Access.FieldsForOperation(e, role, op)
	out := make([]string, 0, len(set))
	for _, name := range e.FieldNames() {
		if _, ok := set[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// GET /api/meta/roles — текущая иерархия (от младшей к старшей).
func (s *Server) RolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"roles": s.Hierarchy.Roles()})
	}
}

// POST /api/admin/roles/reload — перечитать роли из БД и заменить
// иерархию. Кэши, привязанные к прежней иерархии, сбрасываются вместе.
func (s *Server) ReloadRolesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.DB == nil {
			renderError(c, apperr.Config("roles reload requires a database"))
			return
		}
		list, err := roles.LoadFromDB(c.Request.Context(), s.DB)
		if err != nil {
			renderError(c, err)
			return
		}
		if err := s.Hierarchy.Replace(list); err != nil {
			renderError(c, err)
			return
		}
		s.Access.ClearCache()
		s.Schemas.ClearCache()
		c.JSON(http.StatusOK, gin.H{"roles": s.Hierarchy.Roles()})
	}
}
