package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uassett/Epsydev/internal/api/handlers"
	"github.com/uassett/Epsydev/internal/api/middleware"
	"github.com/uassett/Epsydev/internal/config"
	"github.com/uassett/Epsydev/internal/directory"
	"github.com/uassett/Epsydev/internal/service"
	"github.com/uassett/Epsydev/internal/websocket"
	"github.com/uassett/Epsydev/pkg/ratelimit"
)

// Deps holds the constructed collaborators the router wires into handlers.
// main owns their lifecycles; the router only routes.
type Deps struct {
	Config      *config.Config
	Matchmaking *service.MatchmakingService
	Matches     *service.MatchService
	Servers     *directory.Directory
	Hub         *websocket.Hub
	WSDeps      websocket.Deps
	Limiter     *ratelimit.RedisRateLimiter
}

// SetupRouter builds the HTTP surface
func SetupRouter(deps Deps) *gin.Engine {
	cfg := deps.Config

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	matchmakingHandler := handlers.NewMatchmakingHandler(deps.Matchmaking, deps.Servers)
	matchHandler := handlers.NewMatchHandler(deps.Matches)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.WSDeps)

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint (players)
		v1.GET("/ws", middleware.Auth(cfg), wsHandler.HandleWebSocket)

		// Matchmaking status routes
		v1.GET("/queue/status", matchmakingHandler.GetQueueStatus)
		v1.GET("/servers", matchmakingHandler.GetServers)

		// Match routes
		matches := v1.Group("/match")
		{
			matches.GET("/history", middleware.Auth(cfg), matchHandler.GetHistory)
			matches.GET("/active", matchHandler.GetActiveMatches)
			matches.GET("/current", middleware.Auth(cfg), matchHandler.GetCurrentMatch)
			matches.POST("/leave", middleware.Auth(cfg), matchHandler.LeaveMatch)
			matches.GET("/:id", middleware.Auth(cfg), matchHandler.GetMatch)

			// game server reporting, guarded by the shared secret
			serverOnly := matches.Group("")
			serverOnly.Use(middleware.ServerAuth(cfg.GameServerSecret))
			if deps.Limiter != nil {
				serverOnly.Use(middleware.RateLimit(middleware.RateLimitConfig{
					Limiter: deps.Limiter,
					Limit:   120,
					Window:  time.Minute,
					KeyFunc: middleware.IPKeyFunc,
				}))
			}
			{
				serverOnly.POST("/:id/results", matchHandler.SubmitResults)
				serverOnly.POST("/:id/end", matchHandler.EndMatch)
			}
		}
	}

	return router
}
