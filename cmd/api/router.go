package api

import (
	"net/http"

	"locum-backend/internal/app"
	authDelivery "locum-backend/internal/auth/delivery"
	deviceDelivery "locum-backend/internal/device/delivery"
	ingestDelivery "locum-backend/internal/ingest/delivery"
	shiftDelivery "locum-backend/internal/shift/delivery"
	syncDelivery "locum-backend/internal/sync/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, a *app.App) {
	oauthHandler := authDelivery.NewOAuthHandler(a.OAuth, a.Config.AppBaseURL)
	syncHandler := syncDelivery.NewSyncHandler(a.Sync, a.Config.PubSubToken)
	ingestHandler := ingestDelivery.NewIngestHandler(a.Ingest)
	shiftHandler := shiftDelivery.NewShiftHandler(a.Extraction, a.Offers)
	deviceHandler := deviceDelivery.NewDeviceHandler(a.Devices)
	admin := authDelivery.AdminMiddleware(a.Auth)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// OAuth connect, guarded by the signed state
		auth := api.Group("/auth/google")
		{
			auth.GET("/start", oauthHandler.Start)
			auth.GET("/callback", oauthHandler.Callback)
		}

		// Gmail push webhook checks its own verification token
		api.POST("/gmail/push", syncHandler.Push)

		gmail := api.Group("/gmail")
		gmail.Use(admin)
		{
			gmail.POST("/resync", syncHandler.Resync)
			gmail.POST("/watch", syncHandler.RenewWatch)
			gmail.GET("/status", syncHandler.Status)
			gmail.PUT("/settings", syncHandler.UpdateSettings)
		}

		api.POST("/extract/run", admin, shiftHandler.RunExtraction)

		ingest := api.Group("/ingest")
		ingest.Use(admin)
		{
			ingest.POST("/whatsapp", ingestHandler.ImportWhatsApp)
			ingest.GET("/stats", ingestHandler.Stats)
		}

		shifts := api.Group("/shifts")
		shifts.Use(admin)
		{
			shifts.GET("", shiftHandler.GetShifts)
			shifts.PATCH("/:id/status", shiftHandler.UpdateShiftStatus)
			shifts.GET("/:id/action", shiftHandler.GetShiftAction)
		}

		templates := api.Group("/templates")
		templates.Use(admin)
		{
			templates.GET("", shiftHandler.GetTemplates)
			templates.PUT("", shiftHandler.PutTemplates)
		}

		devices := api.Group("/devices")
		devices.Use(admin)
		{
			devices.POST("", deviceHandler.Register)
			devices.DELETE("/:token", deviceHandler.Unregister)
		}

		// Runtime extractor configuration
		settings := api.Group("/settings")
		settings.Use(admin)
		{
			settings.GET("/extractor", GetExtractorSettings)
			settings.PUT("/extractor", UpdateExtractorSettings)
			settings.POST("/extractor/test", TestOllamaConnection)
		}
	}
}
