package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/reclaim/internal/api/handlers"
	"github.com/your-org/reclaim/internal/api/ws"
	"github.com/your-org/reclaim/internal/auth"
	"github.com/your-org/reclaim/internal/matching"
	"github.com/your-org/reclaim/internal/queue"
	"github.com/your-org/reclaim/internal/storage"
)

type RouterConfig struct {
	APIKey    string
	DB        *storage.PostgresStore
	MinIO     *storage.MinIOStore
	Producer  *queue.Producer
	Hub       *ws.Hub
	Lifecycle *matching.Lifecycle
	Feedback  *matching.FeedbackLoop
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.RequireKey(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Cases & photos
	caseH := handlers.NewCaseHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	v1.POST("/cases", caseH.Create)
	v1.GET("/cases", caseH.List)
	v1.GET("/cases/:id", caseH.Get)
	v1.POST("/cases/:id/close", caseH.Close)
	v1.POST("/cases/:id/photos", caseH.UploadPhoto)
	v1.GET("/photos/:id/image", caseH.PhotoImage)

	// Matches
	matchH := handlers.NewMatchHandler(cfg.DB, cfg.Lifecycle, cfg.Feedback)
	v1.GET("/cases/:id/matches", matchH.ListByCase)
	v1.GET("/matches/:id", matchH.Get)
	v1.POST("/matches/:id/notified", matchH.Notified)
	v1.POST("/matches/:id/viewed", matchH.Viewed)
	v1.POST("/matches/:id/feedback", matchH.Feedback)

	return r
}
