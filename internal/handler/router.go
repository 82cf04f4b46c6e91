package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dispatch-booking-api/internal/middleware"
)

// Router builds the gin engine. Submission and the slot picker are public
// (rate limited); everything touching the dashboard requires a technician
// token.
func (h *Handler) Router(rl *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	limited := middleware.RateLimit(rl)
	authed := middleware.Auth(h.secret)

	api := r.Group("/api")
	{
		api.POST("/bookings", limited, h.CreateBooking)
		api.GET("/bookings/availability", h.Availability)

		api.POST("/auth/login", limited, h.Login)
		api.POST("/auth/refresh", h.Refresh)
		api.POST("/auth/logout", authed, h.Logout)

		api.GET("/bookings", authed, h.ListBookings)
		api.GET("/bookings/:id", authed, h.GetBooking)
		api.PUT("/bookings/:id", authed, h.UpdateBooking)
		api.DELETE("/bookings/:id", authed, h.CancelBooking)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
