package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dispatch-booking-api/internal/booking"
	"dispatch-booking-api/internal/cache"
	"dispatch-booking-api/internal/store"
	"dispatch-booking-api/pkg/metrics"
)

type Handler struct {
	store   *store.Store
	cache   *cache.AvailabilityCache
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	secret  string
}

func New(st *store.Store, c *cache.AvailabilityCache, m *metrics.Metrics, log *zap.SugaredLogger, secret string) *Handler {
	return &Handler{store: st, cache: c, metrics: m, log: log, secret: secret}
}

// domainErr maps booking errors to HTTP responses; anything unrecognized is
// logged and returned as a generic 500.
func (h *Handler) domainErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrSlotTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "slot already booked"})
	case errors.Is(err, booking.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Errorw("internal error", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
