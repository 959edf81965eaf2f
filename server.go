package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/candidates"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/config"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/curation"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/export"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/middlewares"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/session"
	"github.com/ChrissHeIs/electricco-vehicle-image-manager/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const janitorInterval = time.Minute

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func corsConfig(settings config.Settings) cors.Config {
	cfg := cors.DefaultConfig()
	// Production requires an explicit allowlist; an empty one denies all.
	if config.IsProduction() {
		cfg.AllowOrigins = settings.CorsAllowedOrigins
		if cfg.AllowOrigins == nil {
			cfg.AllowOrigins = []string{}
		}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("Origin", "Content-Type", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Image-Source", middlewares.CorrelationHeader)
	return cfg
}

// setupRouter wires every route. rateLimiter may be nil.
func setupRouter(api *curation.API, registry *session.Registry, settings config.Settings, rateLimiter *middlewares.RateLimiter, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(cors.New(corsConfig(settings)))
	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware())
	}
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", api.HealthHandler())
	if config.ProxyEndpointEnabled() {
		r.GET("/proxy", api.ProxyHandler())
	}

	r.POST("/sessions", api.CreateSessionHandler())
	s := r.Group("/sessions/:sid", middlewares.SessionMiddleware(registry))
	{
		s.GET("", api.GetSessionHandler())
		s.DELETE("", api.DeleteSessionHandler())

		s.POST("/vehicles/upload", uploadVehiclesHandler(api))
		s.POST("/vehicles/fetch", api.FetchVehiclesHandler())
		s.GET("/vehicles", api.ListVehiclesHandler())
		s.POST("/candidates", api.BatchCandidatesHandler())

		s.GET("/vehicles/:row/candidates", api.RowCandidatesHandler())
		s.PUT("/vehicles/:row/selection", api.SelectCandidateHandler())
		s.PUT("/vehicles/:row/override", api.SetOverrideHandler())
		s.POST("/vehicles/:row/override/upload", overrideUploadHandler(api))
		s.DELETE("/vehicles/:row/override", api.ClearOverrideHandler())
		s.GET("/vehicles/:row/server-image", api.ServerImageHandler())
		s.POST("/vehicles/:row/server-image/select", api.SelectServerImageHandler())
		s.POST("/vehicles/:row/imported/select", api.SelectImportedHandler())

		s.POST("/manifest/import", importManifestHandler(api))
		s.GET("/selections", api.SelectionsHandler())

		s.POST("/exports/json", api.ExportJSONHandler())
		s.POST("/exports", api.StartExportHandler())
		s.GET("/exports/:job", api.GetExportHandler())
		s.GET("/exports/:job/download", api.DownloadExportHandler())
		s.DELETE("/exports/:job", api.CancelExportHandler())
	}
	r.NoRoute(customNotFoundHandler)
	return r
}

func newSearcher(settings config.Settings, client *http.Client, logger *logrus.Logger) candidates.Searcher {
	var searcher candidates.Searcher = candidates.NewCarsXEClient(candidates.CarsXEOptions{
		Endpoint:   settings.CarsXEEndpoint,
		APIKey:     settings.CarsXEKey,
		ProxyURL:   settings.ProxyURL,
		RatePerMin: settings.CarsXERatePerMin,
		HTTPClient: client,
	})
	if config.CandidateCacheEnabled() {
		searcher = candidates.NewCachedSearcher(searcher, settings.CandidateCacheTTL, logger)
	}
	return searcher
}

func newDeps(ctx context.Context, settings config.Settings, logger *logrus.Logger) curation.Deps {
	client := utils.NewHTTPClient(settings.HTTPClientTimeout)

	deps := curation.Deps{
		Registry:     session.NewRegistry(ctx, settings.SessionTTL, newSearcher(settings, client, logger), logger),
		Exporter:     export.NewZipExporter(export.NewImageFetcher(client, settings.ImageProxyURL), settings.MaxImageWidth, logger),
		ServerImages: candidates.NewServerImageClient(settings.BackendBaseURL, client, settings.PlaceholderImage),
		HTTPClient:   client,
		Settings:     settings,
		Logger:       logger,
	}
	if utils.GetExportStorage() == utils.ExportStorageGCS {
		deps.Archives = curation.GCSArchives{Expiry: settings.ExportURLExpiry}
	}
	if config.ExportEventsEnabled() {
		deps.Events = curation.NewPubSubEvents(settings.ExportEventsTopic, settings.CreateEventsTopic)
	}
	return deps
}

func main() {
	settings := config.Load()
	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	deps := newDeps(appCtx, settings, logger)
	registry := deps.Registry
	registry.StartJanitor(janitorInterval)
	api := curation.NewAPI(deps)

	var rateLimiter *middlewares.RateLimiter
	if config.RateLimitEnabled() {
		rateLimiter = middlewares.NewRateLimiter(config.GetRedisDB, settings.RateLimitRequests, settings.RateLimitWindow, logger)
	}
	r := setupRouter(api, registry, settings, rateLimiter, logger)

	// Listen before connecting redis so the startup probe passes.
	srv := &http.Server{
		Addr:    ":" + settings.Port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	go config.ConnectRedisWithRetry(appCtx)

	logger.WithFields(logrus.Fields{
		"port":           settings.Port,
		"export_storage": utils.GetExportStorage(),
	}).Info("[server.started]")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Closing the registry cancels running exports and searches.
	registry.Close()
	api.Wait()
	cancelApp()

	if ev, ok := deps.Events.(*curation.PubSubEvents); ok {
		ev.Stop()
	}
	config.ClosePubSub()
	config.CloseRedis()
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
