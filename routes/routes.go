package routes

import (
	"net/http"
	"time"

	"courtwatch/handlers"
	"courtwatch/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// HandlerBundle carries every handler the router needs.
type HandlerBundle struct {
	Monitors     *handlers.MonitorHandler
	Availability *handlers.AvailabilityHandler
	Swap         *handlers.SwapHandler
	Events       *handlers.EventsHandler
}

// RegisterRoutes wires up the whole API surface.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r)

	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware())
	{
		monitors := api.Group("/monitors")
		monitors.POST("/roster", hb.Monitors.CreateRoster)
		monitors.POST("/fixed", hb.Monitors.CreateFixed)
		monitors.GET("", hb.Monitors.List)
		monitors.GET("/:id", hb.Monitors.Get)
		monitors.POST("/:id/stop", hb.Monitors.Stop)
		monitors.POST("/cleanup", hb.Monitors.Cleanup)
		monitors.GET("/:id/events", hb.Events.Stream)

		avail := api.Group("/availability")
		avail.POST("/scan", hb.Availability.Scan)
		avail.GET("/snapshot", hb.Availability.Snapshot)
		avail.GET("/find", hb.Availability.Find)

		api.POST("/bookings/swap", hb.Swap.Swap)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Hi, I'm courtwatch"})
	})
}
