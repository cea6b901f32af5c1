package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mdr-library-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mdr-library-backend/internal/http/middleware"
	"github.com/yungbote/mdr-library-backend/internal/observability"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

// RouteRegistrar mounts one entity type's routes under /api.
type RouteRegistrar interface {
	Register(api *gin.RouterGroup)
}

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	HealthHandler *httpH.HealthHandler
	ItemHandlers  []RouteRegistrar
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	api.Use(httpMW.RequireAuthor())
	for _, h := range cfg.ItemHandlers {
		if h != nil {
			h.Register(api)
		}
	}
	return r
}
