package server

import (
	"github.com/abduss/filebroker/internal/config"
	"github.com/abduss/filebroker/internal/file"
	"github.com/abduss/filebroker/internal/instance"
	"github.com/abduss/filebroker/internal/logger"
	"github.com/abduss/filebroker/internal/metrics"
	"github.com/abduss/filebroker/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config          config.Config
	Log             *zap.Logger
	DB              *pgxpool.Pool
	Redis           *redis.Client
	FileService     *file.Service
	UserService     *user.Service
	InstanceService *instance.Service
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(deps.Log))

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	api := router.Group("/api/v1")
	if deps.FileService != nil {
		file.RegisterRoutes(api, deps.FileService, deps.InstanceService.VKSecret)
	}
	if deps.UserService != nil {
		user.RegisterRoutes(api, deps.UserService)
	}
	if deps.InstanceService != nil {
		instance.RegisterRoutes(api, deps.InstanceService)
	}

	return router
}
