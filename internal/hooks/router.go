// Package hooks is the HTTP face of the pipeline: the host CMS calls it
// when an item is created, finalized or deleted, and operators use it for
// artifact URLs and presigned uploads.
package hooks

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mediaoffload/internal/logging"
)

// BasePath prefixes every authenticated route.
const BasePath = "/api/offload/v1"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Secret []byte
	// CORSOrigins defaults to every origin when empty.
	CORSOrigins []string
}

// NewRouter wires the handler into a gin engine.
func NewRouter(cfg RouterConfig, h *Handler, l logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(l.With("module", "hooks")))
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group(BasePath)
	v1.Use(Auth(cfg.Secret))
	{
		v1.POST("/items/:id/created", h.Created)
		v1.POST("/items/:id/finalized", h.Finalized)
		v1.POST("/items/:id/deleted", h.Deleted)
		v1.GET("/items/:id/urls", h.URLs)
		v1.POST("/presign", h.Presign)
	}
	return r
}
