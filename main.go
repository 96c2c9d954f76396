package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cvakodobro/catch-me-if-you-can-backend/config"
	"github.com/cvakodobro/catch-me-if-you-can-backend/crypto"
	"github.com/cvakodobro/catch-me-if-you-can-backend/game"
	"github.com/cvakodobro/catch-me-if-you-can-backend/migrations"
	"github.com/cvakodobro/catch-me-if-you-can-backend/storage"
	"github.com/cvakodobro/catch-me-if-you-can-backend/trivia"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	if cfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	migrations.Migrate(cfg.PostgresURL)

	// Dependencies
	results, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}

	random := game.NewRandomPolicy()
	provider := trivia.NewClient(cfg.TriviaBaseURL, cfg.QuestionAmount, random)
	secretHasher := crypto.NewArgon2idHasher(3, 1024*64, 32, 16, 1)

	registry := game.NewRegistry(
		game.NewIdGen(),
		random,
		game.NewScheduler(),
		game.DefaultTimings(),
		secretHasher,
		provider,
		results,
	)

	registryStarted := make(chan struct{})
	go registry.RegistryActor(registryStarted)
	<-registryStarted

	r := CreateServer(cfg.AllowedOrigins)

	gameHandler := game.NewGameHandler(registry)
	r.GET("/ws", gameHandler.WebsocketHandler)
	r.GET("/sessions", gameHandler.GetSessionsHandler)

	r.GET("/results", func(ctx *gin.Context) {
		limit := 20
		if raw := ctx.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
				limit = parsed
			}
		}
		list, err := results.RecentMatchResults(ctx.Request.Context(), limit)
		if err != nil {
			slog.Error("list match results", "err", err)
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"results": list})
	})

	r.Run(":" + cfg.Port)
}
