package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tross/internal/apperr"
	"tross/internal/audit"
	"tross/internal/meta"
	"tross/internal/repo"
	"tross/internal/validation"
)

// POST /api/:entity
func (s *Server) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.Registry.Get(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		role := s.roleFrom(c)

		var obj map[string]any
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		// нормализация до валидации, чтобы пробелы не давали ложных ошибок
		obj = validation.SanitizeMap(obj, e)

		// известные метаданным, но запрещённые роли поля — одна ошибка со
		// всем списком
		if err := s.Access.ValidateFieldAccess(obj, e, role, meta.OpCreate); err != nil {
			renderError(c, err)
			return
		}

		schema, err := s.Schemas.EntitySchema(e, meta.OpCreate, role)
		if err != nil {
			renderError(c, err)
			return
		}
		cleaned, err := schema.Validate(obj)
		if err != nil {
			renderError(c, err)
			return
		}

		// защитный финальный фильтр, молчаливый
		cleaned = s.Access.FilterWritableFields(cleaned, e, role, meta.OpCreate)

		var rec *repo.Record
		if e.Identifier != nil {
			// номер — кандидат; уникальный индекс решает, retry на конфликте
			err = s.IDs.GenerateWithRetry(c.Request.Context(), e, func(candidate string) error {
				cleaned[e.Identifier.Field] = candidate
				var insErr error
				rec, insErr = s.Store.Insert(c.Request.Context(), e, cleaned)
				return insErr
			})
		} else {
			rec, err = s.Store.Insert(c.Request.Context(), e, cleaned)
		}
		if err != nil {
			renderError(c, err)
			return
		}

		s.Audit.Emit(audit.Event{
			Actor: actorFrom(c), Role: role, Entity: e.Name, RecordID: rec.ID,
			Action: meta.OpCreate, Fields: audit.FieldNames(cleaned), At: time.Now().UTC(),
		})

		c.JSON(http.StatusCreated, s.Access.FilterRecord(rec.Flatten(), e, role))
	}
}

// GET /api/:entity
func (s *Server) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.Registry.Get(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		role := s.roleFrom(c)

		lp := parseListParams(c.Request.URL.Query())
		// фильтровать можно только по читаемым ролью полям
		readable := s.Access.FieldsForOperation(e, role, meta.OpRead)
		for name := range lp.Filters {
			if _, ok := readable[name]; !ok {
				delete(lp.Filters, name)
			}
		}

		recs, total, err := s.Store.List(c.Request.Context(), e, lp)
		if err != nil {
			renderError(c, err)
			return
		}

		out := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			out = append(out, s.Access.FilterRecord(rec.Flatten(), e, role))
		}
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/:entity/:id
func (s *Server) GetOneHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.Registry.Get(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		role := s.roleFrom(c)

		rec, err := s.Store.Get(c.Request.Context(), e, c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.Header("ETag", fmt.Sprintf(`"%d"`, rec.Version))
		c.JSON(http.StatusOK, s.Access.FilterRecord(rec.Flatten(), e, role))
	}
}

// PUT|PATCH /api/:entity/:id
func (s *Server) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.Registry.Get(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		role := s.roleFrom(c)

		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		// ожидаемую версию читаем ДО чистки системных полей
		expVer, haveVer := readExpectedVersion(c, patch)
		for _, sys := range meta.SystemFields {
			delete(patch, sys)
		}
		if !haveVer {
			renderError(c, apperr.New(apperr.Conflict, "expected version is required (If-Match or body.version)").
				WithField("version"))
			return
		}

		patch = validation.SanitizeMap(patch, e)

		if err := s.Access.ValidateFieldAccess(patch, e, role, meta.OpUpdate); err != nil {
			renderError(c, err)
			return
		}

		schema, err := s.Schemas.EntitySchema(e, meta.OpUpdate, role)
		if err != nil {
			renderError(c, err)
			return
		}
		cleaned, err := schema.Validate(patch)
		if err != nil {
			renderError(c, err)
			return
		}
		cleaned = s.Access.FilterWritableFields(cleaned, e, role, meta.OpUpdate)

		rec, err := s.Store.Update(c.Request.Context(), e, c.Param("id"), expVer, cleaned)
		if err != nil {
			renderError(c, err)
			return
		}

		s.Audit.Emit(audit.Event{
			Actor: actorFrom(c), Role: role, Entity: e.Name, RecordID: rec.ID,
			Action: meta.OpUpdate, Fields: audit.FieldNames(cleaned), At: time.Now().UTC(),
		})

		c.JSON(http.StatusOK, s.Access.FilterRecord(rec.Flatten(), e, role))
	}
}

// DELETE /api/:entity/:id
func (s *Server) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := s.Registry.Get(c.Param("entity"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		role := s.roleFrom(c)
		id := c.Param("id")

		if !s.Access.CanDelete(e, role) {
			renderError(c, apperr.Permission(meta.OpDelete, []string{e.Name}))
			return
		}

		if err := s.Store.Delete(c.Request.Context(), e, id); err != nil {
			renderError(c, err)
			return
		}

		s.Audit.Emit(audit.Event{
			Actor: actorFrom(c), Role: role, Entity: e.Name, RecordID: id,
			Action: meta.OpDelete, At: time.Now().UTC(),
		})

		c.Status(http.StatusNoContent)
	}
}

// readExpectedVersion читает ожидаемую версию из If-Match либо из
// payload["version"] (число).
func readExpectedVersion(c *gin.Context, payload map[string]any) (int64, bool) {
	ifMatch := strings.TrimSpace(c.GetHeader("If-Match"))
	if ifMatch != "" {
		if strings.HasPrefix(ifMatch, "W/") {
			ifMatch = strings.TrimPrefix(ifMatch, "W/")
		}
		ifMatch = strings.Trim(ifMatch, `"'`)
		if v, err := strconv.ParseInt(ifMatch, 10, 64); err == nil {
			return v, true
		}
	}
	if payload != nil {
		if raw, ok := payload["version"]; ok {
			switch t := raw.(type) {
			case float64:
				return int64(t), true
			case string:
				if v, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
					return v, true
				}
			}
		}
	}
	return 0, false
}
