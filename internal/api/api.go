package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/api/handlers"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/api/middleware"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-forecast/backend-go/internal/pipeline"
)

type Services struct {
	Worker   *pipeline.Worker
	Planner  pipeline.SKUPlanner
	Defaults domain.PlanConfig
	// MaxUploadMemory caps the multipart bytes held in memory. Zero keeps
	// gin's default.
	MaxUploadMemory int64
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	if services != nil && services.MaxUploadMemory > 0 {
		router.MaxMultipartMemory = services.MaxUploadMemory
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")
	apiGroup.POST("/validate", handlers.Validate)

	if services != nil && services.Worker != nil {
		forecastHandler := handlers.NewForecastHandler(services.Worker, services.Planner, services.Defaults)
		forecastGroup := apiGroup.Group("/forecast")
		{
			forecastGroup.POST("", forecastHandler.Forecast)
			forecastGroup.POST("/sku", forecastHandler.ForecastSKU)
			forecastGroup.POST("/upload", forecastHandler.ForecastUpload)
		}

		runHandler := handlers.NewRunHandler(services.Worker.Store())
		runGroup := apiGroup.Group("/runs")
		{
			runGroup.GET("/:id", runHandler.GetRun)
			runGroup.GET("/:id/export/:view", runHandler.Export)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
