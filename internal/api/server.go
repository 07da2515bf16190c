package api

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"tross/internal/access"
	"tross/internal/apperr"
	"tross/internal/audit"
	"tross/internal/identifier"
	"tross/internal/meta"
	"tross/internal/repo"
	"tross/internal/roles"
	"tross/internal/validation"
)

// Server связывает ядро: реестр метаданных, иерархию ролей, контроллер
// доступа, схемы валидации, хранилище и генератор номеров.
type Server struct {
	Registry  *meta.Registry
	Hierarchy *roles.Hierarchy
	Access    *access.Controller
	Schemas   *validation.Builder
	Store     *repo.Store
	IDs       *identifier.Generator
	Audit     audit.Emitter

	DB *sql.DB // для admin-перезагрузки ролей
}

// Router собирает таблицу маршрутов.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/meta", s.MetaListHandler())
		apiGroup.GET("/meta/roles", s.RolesHandler())
		apiGroup.GET("/meta/:entity", s.MetaEntityHandler())
		apiGroup.POST("/admin/roles/reload", s.ReloadRolesHandler())

		apiGroup.POST("/:entity", s.CreateHandler())
		apiGroup.GET("/:entity", s.ListHandler())
		apiGroup.GET("/:entity/:id", s.GetOneHandler())
		apiGroup.PUT("/:entity/:id", s.UpdateHandler())
		apiGroup.PATCH("/:entity/:id", s.UpdateHandler())
		apiGroup.DELETE("/:entity/:id", s.DeleteHandler())
	}
	return r
}

// Run запускает HTTP-сервер.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

// roleFrom — роль вызывающего из заголовка, который проставляет внешний
// слой аутентификации. Пустое/неизвестное значение нормализуется к
// младшей роли (fail closed).
func (s *Server) roleFrom(c *gin.Context) string {
	return s.Hierarchy.Normalize(c.GetHeader("X-User-Role"))
}

func actorFrom(c *gin.Context) string {
	return c.GetHeader("X-User-Id")
}

// renderError — единая точка отдачи ошибок. Доменные ошибки уходят с
// категорией и статусом; всё остальное — opaque 500 без внутренностей.
func renderError(c *gin.Context, err error) {
	if ae, ok := err.(*apperr.Error); ok {
		c.JSON(ae.HTTPStatus(), gin.H{"error": ae})
		return
	}
	c.JSON(500, gin.H{"error": gin.H{
		"category": "internal",
		"message":  "internal error",
	}})
}
