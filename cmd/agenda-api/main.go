package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/agenda-api/api/swagger"
	"github.com/noah-isme/agenda-api/internal/geocode"
	"github.com/noah-isme/agenda-api/internal/handler"
	internalmiddleware "github.com/noah-isme/agenda-api/internal/middleware"
	"github.com/noah-isme/agenda-api/internal/notify"
	"github.com/noah-isme/agenda-api/internal/repository"
	"github.com/noah-isme/agenda-api/internal/service"
	"github.com/noah-isme/agenda-api/pkg/cache"
	"github.com/noah-isme/agenda-api/pkg/config"
	"github.com/noah-isme/agenda-api/pkg/database"
	"github.com/noah-isme/agenda-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/agenda-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/agenda-api/pkg/middleware/requestid"
)

// @title Agenda API
// @version 0.1.0
// @description Event agenda with local reminders
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, event list cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	var scheduler *notify.Scheduler
	if cfg.Notifications.Enabled {
		scheduler = notify.NewScheduler(notify.SchedulerConfig{
			Capable:   cfg.Notifications.DeviceCapable,
			AutoGrant: cfg.Notifications.AutoGrant,
			Channel: notify.Channel{
				Name:       cfg.Notifications.ChannelName,
				Importance: cfg.Notifications.ChannelImportance,
				Vibration:  cfg.Notifications.VibrationPattern,
			},
			Workers: cfg.Notifications.Workers,
			Logger:  logr,
		})
		scheduler.Start(context.Background())
		defer scheduler.Stop()
	}

	var pending service.PendingFunc
	if scheduler != nil {
		pending = scheduler.Pending
	}
	metricsSvc := service.NewMetricsService(pending)

	validate := validator.New()
	eventRepo := repository.NewEventRepository(db)

	var eventService *service.EventService
	switch {
	case scheduler != nil && cacheRepo != nil:
		eventService = service.NewEventService(eventRepo, scheduler, cacheRepo, cfg.Cache.TTL, validate, logr)
	case scheduler != nil:
		eventService = service.NewEventService(eventRepo, scheduler, nil, cfg.Cache.TTL, validate, logr)
	case cacheRepo != nil:
		eventService = service.NewEventService(eventRepo, nil, cacheRepo, cfg.Cache.TTL, validate, logr)
	default:
		eventService = service.NewEventService(eventRepo, nil, nil, cfg.Cache.TTL, validate, logr)
	}

	geoClient := geocode.NewClient(cfg.Geocoder, logr)

	eventHandler := handler.NewEventHandler(eventService, geoClient, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.WithResponseMeta())
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/events", eventHandler.List)
		api.POST("/events", eventHandler.Create)
		api.GET("/events/:id", eventHandler.Get)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/select", eventHandler.Select)
		api.GET("/events/:id/map", eventHandler.Map)
		api.GET("/selection", eventHandler.Selection)
		api.DELETE("/selection", eventHandler.ClearSelection)
		api.POST("/selection/delete", eventHandler.DeleteSelected)
		api.GET("/export", eventHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
