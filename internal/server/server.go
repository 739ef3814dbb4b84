package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/4xmen/pairchat/internal/handlers"
	"github.com/4xmen/pairchat/internal/logging"
	"github.com/4xmen/pairchat/internal/metrics"
)

type RateLimits struct {
	Register limiter.Rate
	Login    limiter.Rate
	Send     limiter.Rate
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Register: limiter.Rate{Period: time.Minute, Limit: 2},
		Login:    limiter.Rate{Period: time.Minute, Limit: 5},
		Send:     limiter.Rate{Period: time.Minute, Limit: 60},
	}
}

type Options struct {
	Production    bool
	CORSOrigins   string
	MaxUploadSize int64
	RateLimits    RateLimits
	Logger        zerolog.Logger
}

// New builds the HTTP router. Every route is reachable with and without a
// trailing slash.
func New(opts Options, authHandler *handlers.AuthHandler, chatHandler *handlers.ChatHandler) *gin.Engine {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.CORSOrigins == "" {
		opts.CORSOrigins = "*"
	}

	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(logging.GinMiddleware(opts.Logger))
	router.Use(metrics.GinMiddleware())
	router.Use(serverErrorLogger(opts.Logger))
	router.Use(panicRecovery(opts.Logger))
	router.Use(corsMiddleware(opts.CORSOrigins))
	if opts.MaxUploadSize > 0 {
		router.MaxMultipartMemory = opts.MaxUploadSize
	}

	registerLimiter := limiter.New(memory.NewStore(), opts.RateLimits.Register)
	loginLimiter := limiter.New(memory.NewStore(), opts.RateLimits.Login)
	sendLimiter := limiter.New(memory.NewStore(), opts.RateLimits.Send)

	api := router.Group("/api")
	handle(api, http.MethodPost, "/auth/register", rateLimitMiddleware(registerLimiter), authHandler.Register)
	handle(api, http.MethodPost, "/auth/login", rateLimitMiddleware(loginLimiter), authHandler.Login)

	chatGroup := api.Group("/chat")
	chatGroup.Use(authHandler.AuthMiddleware())
	{
		handle(chatGroup, http.MethodGet, "/rooms", chatHandler.ListRooms)
		handle(chatGroup, http.MethodPost, "/rooms", chatHandler.OpenRoom)
		handle(chatGroup, http.MethodGet, "/rooms/:room_id/partner", chatHandler.GetPartner)
		handle(chatGroup, http.MethodGet, "/rooms/:room_id/messages", chatHandler.ListMessages)
		handle(chatGroup, http.MethodPost, "/rooms/:room_id/messages/send", rateLimitMiddleware(sendLimiter), chatHandler.SendMessage)
		handle(chatGroup, http.MethodPost, "/rooms/:room_id/messages/read", chatHandler.MarkRead)
		handle(chatGroup, http.MethodPost, "/rooms/:room_id/leave", chatHandler.LeaveRoom)
		handle(chatGroup, http.MethodGet, "/files/:file_id/download", chatHandler.DownloadFile)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, http.StatusNotFound, "not found")
	})

	return router
}

func handle(g *gin.RouterGroup, method, path string, h ...gin.HandlerFunc) {
	g.Handle(method, path, h...)
	g.Handle(method, path+"/", h...)
}

// Run serves handler on addr until ctx is cancelled, then shuts down,
// giving in-flight requests up to shutdownTimeout to finish.
func Run(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
