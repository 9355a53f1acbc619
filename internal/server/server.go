package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/config"
	"github.com/Nasko29/progimage-backend/internal/domain"
	"github.com/Nasko29/progimage-backend/internal/handler"
	"github.com/Nasko29/progimage-backend/internal/repository"
	"github.com/Nasko29/progimage-backend/internal/service"
	"github.com/Nasko29/progimage-backend/pkg/utils"
)

type Server struct {
	httpServer *http.Server
	db         *badger.DB
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repository.OpenDB(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	objectRepo, err := repository.NewS3Repository(&cfg.S3, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create S3 repository: %w", err)
	}

	clientRepo := repository.NewClientRepository(db, log)
	imageRepo := repository.NewImageRepository(db, log)

	converter := utils.NewConverter(log)
	clientService := service.NewClientService(clientRepo, imageRepo, objectRepo, log)
	imageService := service.NewImageService(imageRepo, objectRepo, converter, cfg, log)

	h := handler.NewHandler(clientService, imageService, cfg, log)

	router := NewRouter(h, cfg, log)

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		db:  db,
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	return server, nil
}

// NewRouter builds the explicit route table. Protected routes sit behind
// the credential middleware; rate limiting and request logging apply to
// everything.
func NewRouter(h *handler.Handler, cfg *config.Config, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Panic recovered", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, domain.ErrorResponse{
			Status:  http.StatusInternalServerError,
			Message: "internal server error",
		})
	}))
	router.Use(handler.RequestLogger(log))

	if cfg.App.RateLimitEnabled {
		limiter := handler.NewRateLimiter(cfg.App.RateLimitRequests, cfg.App.RateLimitBurst)
		router.Use(limiter.Middleware())
	}

	router.GET("/", h.Index)
	router.GET("/health", h.HealthCheck)
	router.GET("/apikey", h.Register)
	router.DELETE("/apikey", h.Auth(), h.Deregister)

	api := router.Group("/api", h.Auth())
	{
		api.POST("/upload", h.Upload)
		api.GET("", h.Download)
		api.GET("/convert/:extension", h.Convert)
		api.DELETE("/client", h.Deregister)
	}

	router.NoRoute(h.NotFound)

	return router
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}
