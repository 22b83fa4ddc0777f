package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mindjourney-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mindjourney-backend/internal/http/middleware"
	"github.com/yungbote/mindjourney-backend/internal/observability"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	ServiceName string

	EntryHandler    *httpH.EntryHandler
	InsightsHandler *httpH.InsightsHandler
	HealthHandler   *httpH.HealthHandler
	EventsHandler   *httpH.EventsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.TraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if h := cfg.EntryHandler; h != nil {
		api.POST("/entries", h.CreateEntry)
		api.GET("/entries/:id", h.GetEntry)
		api.PATCH("/entries/:id", h.UpdateEntry)
		api.DELETE("/entries/:id", h.DeleteEntry)
		api.POST("/entries/:id/documents", h.AttachDocument)
		api.DELETE("/entries/:id/documents/:doc_id", h.DeleteDocument)
		api.POST("/entries/:id/reprocess", h.Reprocess)
		api.GET("/entries/:id/insights", h.GetInsights)
	}
	if h := cfg.InsightsHandler; h != nil {
		api.GET("/insights/status", h.Status)
		api.POST("/insights/sweep", h.Sweep)
	}
	if h := cfg.EventsHandler; h != nil {
		api.GET("/events", h.Stream)
	}
	return r
}
