package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/farmadisplay/internal/config"
	"github.com/example/farmadisplay/internal/display"
	"github.com/example/farmadisplay/internal/handlers"
	"github.com/example/farmadisplay/internal/lookup"
	"github.com/example/farmadisplay/internal/middleware"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	lookupClient := lookup.NewClient(cfg.LookupBaseURL, cfg.LookupTimeout)
	renderer := &display.Renderer{Lookup: lookupClient}

	authHandler := handlers.NewAuthHandler(db, cfg)
	pharmacyHandler := handlers.NewPharmacyHandler(db)
	deviceHandler := handlers.NewDeviceHandler(db)
	configHandler := handlers.NewDisplayConfigHandler(db, cfg.UploadDir, renderer)
	scrapingHandler := handlers.NewScrapingHandler(lookupClient)

	app.Static("/uploads", cfg.UploadDir)

	api := app.Group("/api/v1")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Public kiosk routes: displays carry no credentials.
	api.Get("/pharmacies/by-display-id/:displayId", pharmacyHandler.ResolveByDisplayID)
	api.Get("/display-config/:pharmacyId", configHandler.GetConfig)
	api.Post("/devices/:id/heartbeat", deviceHandler.Heartbeat)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/auth/me", authHandler.Me)

	protected.Get("/pharmacies", pharmacyHandler.ListPharmacies)
	protected.Post("/pharmacies", pharmacyHandler.CreatePharmacy)
	protected.Get("/pharmacies/:id", pharmacyHandler.GetPharmacy)
	protected.Put("/pharmacies/:id", pharmacyHandler.UpdatePharmacy)
	protected.Delete("/pharmacies/:id", pharmacyHandler.DeletePharmacy)

	protected.Post("/display-config/:pharmacyId", configHandler.CreateConfig)
	protected.Put("/display-config/:pharmacyId", configHandler.UpdateConfig)
	protected.Delete("/display-config/:pharmacyId", configHandler.DeleteConfig)
	protected.Post("/display-config/:pharmacyId/logo", configHandler.UploadLogo)
	protected.Post("/display-config/:pharmacyId/image", configHandler.UploadImage)
	protected.Post("/display-config/:pharmacyId/preview", configHandler.Preview)

	protected.Get("/devices", deviceHandler.ListDevices)
	protected.Post("/devices", deviceHandler.RegisterDevice)
	protected.Post("/devices/:id/activate", deviceHandler.ActivateDevice)
	protected.Put("/devices/:id/status", deviceHandler.UpdateDeviceStatus)
	protected.Delete("/devices/:id", deviceHandler.DeleteDevice)

	protected.Post("/scraping/search", scrapingHandler.Search)
}
