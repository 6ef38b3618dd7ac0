package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/didmybit/didmybit_server/config"
	"github.com/didmybit/didmybit_server/internal/api/handler"
	"github.com/didmybit/didmybit_server/internal/api/middleware"
)

type Router struct {
	commentHandler   *handler.CommentHandler
	websocketHandler *handler.WebSocketHandler
	healthHandler    *handler.HealthHandler
	logger           *zap.Logger
	cfg              *config.Config
}

func NewRouter(
	commentHandler *handler.CommentHandler,
	websocketHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	logger *zap.Logger,
	cfg *config.Config,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		commentHandler:   commentHandler,
		websocketHandler: websocketHandler,
		healthHandler:    healthHandler,
		logger:           logger,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(r.logger))
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		api.GET("/healthz", r.healthHandler.Check)

		comments := api.Group("/comments/:postId")
		{
			// 实时事件
			comments.GET("/ws", r.websocketHandler.Handle)

			// 读取和发表（可选认证）
			public := comments.Group("")
			public.Use(middleware.OptionalAuth(r.cfg.JWT.Secret))
			{
				public.GET("", r.commentHandler.List)
				public.POST("", r.commentHandler.Create)
			}

			// 点赞需要认证，投票者身份取自 token
			comments.POST("/like", middleware.Auth(r.cfg.JWT.Secret), middleware.VoterGuard(), r.commentHandler.React)
		}
	}

	return engine
}
