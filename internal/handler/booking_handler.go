package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch-booking-api/internal/booking"
	"dispatch-booking-api/internal/middleware"
	"dispatch-booking-api/internal/model"
	"dispatch-booking-api/internal/store"
)

// the dispatch day: hourly slots a customer can pick from
var daySlots = []string{
	"08:00-09:00", "09:00-10:00", "10:00-11:00", "11:00-12:00",
	"13:00-14:00", "14:00-15:00", "15:00-16:00", "16:00-17:00",
	"17:00-18:00",
}

type createBookingRequest struct {
	ClientName  string   `json:"clientName"`
	Phone       string   `json:"phone"`
	Address     string   `json:"address"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	TimeSlot    string   `json:"timeSlot"`
	Urgency     string   `json:"urgency"`
	ProblemType string   `json:"problemType"`
	Notes       *string  `json:"notes"`
	Source      string   `json:"source"`
}

type bookingResponse struct {
	ID           string              `json:"id"`
	ClientName   string              `json:"clientName"`
	Phone        string              `json:"phone"`
	Address      string              `json:"address"`
	Lat          *float64            `json:"lat"`
	Lng          *float64            `json:"lng"`
	Date         string              `json:"date"`
	Time         string              `json:"time"`
	TimeSlot     string              `json:"timeSlot"`
	Urgency      model.Urgency       `json:"urgency"`
	ProblemType  string              `json:"problemType"`
	Notes        *string             `json:"notes"`
	Source       string              `json:"source"`
	Status       model.Status        `json:"status"`
	TechnicianID *string             `json:"technicianId"`
	Technician   *technicianResponse `json:"technician,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

type technicianResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func toResponse(b *model.Booking) bookingResponse {
	r := bookingResponse{
		ID:           b.ID,
		ClientName:   b.ClientName,
		Phone:        b.Phone,
		Address:      b.Address,
		Lat:          b.Lat,
		Lng:          b.Lng,
		Date:         b.Date.Format("2006-01-02"),
		Time:         b.Time,
		TimeSlot:     b.TimeSlot,
		Urgency:      b.Urgency,
		ProblemType:  b.ProblemType,
		Notes:        b.Notes,
		Source:       b.Source,
		Status:       b.Status,
		TechnicianID: b.TechnicianID,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
	if b.Technician != nil {
		r.Technician = &technicianResponse{ID: b.Technician.ID, Name: b.Technician.Name, Phone: b.Technician.Phone}
	}
	return r
}

// CreateBooking handles the public submission form.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	b, err := booking.ValidateNewBooking(booking.Request{
		ClientName:  req.ClientName,
		Phone:       req.Phone,
		Address:     req.Address,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Date:        req.Date,
		Time:        req.Time,
		TimeSlot:    req.TimeSlot,
		Urgency:     req.Urgency,
		ProblemType: req.ProblemType,
		Notes:       req.Notes,
		Source:      req.Source,
	})
	if err != nil {
		h.domainErr(c, err)
		return
	}

	// advisory check for a friendly rejection; the unique index is what
	// actually prevents a double booking under concurrency
	if taken, err := h.store.SlotTaken(c.Request.Context(), b.Date, b.TimeSlot); err != nil {
		h.domainErr(c, err)
		return
	} else if taken {
		h.metrics.SlotConflicts.Inc()
		h.domainErr(c, booking.ErrSlotTaken)
		return
	}

	if err := h.store.CreateBooking(c.Request.Context(), b); err != nil {
		if errors.Is(err, booking.ErrSlotTaken) {
			h.metrics.SlotConflicts.Inc()
		}
		h.domainErr(c, err)
		return
	}

	h.metrics.BookingsCreated.Inc()
	h.cache.Invalidate(c.Request.Context(), req.Date)
	h.log.Infow("booking created", "id", b.ID, "date", req.Date, "slot", b.TimeSlot, "urgency", b.Urgency)

	c.JSON(http.StatusCreated, toResponse(b))
}

// ListBookings returns the dashboard view: optional date/status/urgency
// filters, HIGH urgency first, then date and time ascending.
func (h *Handler) ListBookings(c *gin.Context) {
	var f store.BookingFilter

	if v := c.Query("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		f.Date = &d
	}
	if v := c.Query("status"); v != "" {
		s, err := model.ParseStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.Status = &s
	}
	if v := c.Query("urgency"); v != "" {
		u, err := model.ParseUrgency(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.Urgency = &u
	}

	bs, err := h.store.ListBookings(c.Request.Context(), f)
	if err != nil {
		h.domainErr(c, err)
		return
	}

	out := make([]bookingResponse, len(bs))
	for i := range bs {
		out[i] = toResponse(&bs[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.store.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.domainErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(b))
}

type updateBookingRequest struct {
	Status   string  `json:"status"`
	Notes    *string `json:"notes"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	TimeSlot string  `json:"timeSlot"`
	Urgency  string  `json:"urgency"`
}

// UpdateBooking applies a lifecycle transition and/or free-form field edits.
func (h *Handler) UpdateBooking(c *gin.Context) {
	var req updateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	b, err := h.store.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.domainErr(c, err)
		return
	}
	oldDate := b.Date.Format("2006-01-02")

	if req.Status != "" && model.Status(req.Status) != b.Status {
		target, err := model.ParseStatus(req.Status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		updated, err := booking.Transition(*b, target, c.GetString(middleware.UserIDKey))
		if err != nil {
			h.metrics.RejectedTransitions.Inc()
			h.domainErr(c, err)
			return
		}
		*b = updated
	}

	if req.Notes != nil {
		b.Notes = req.Notes
	}
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		b.Date = d
	}
	if req.Time != "" {
		b.Time = req.Time
	}
	if req.TimeSlot != "" {
		b.TimeSlot = req.TimeSlot
	}
	if req.Urgency != "" {
		u, err := model.ParseUrgency(req.Urgency)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		b.Urgency = u
	}

	if err := h.store.UpdateBooking(c.Request.Context(), b); err != nil {
		h.domainErr(c, err)
		return
	}

	if req.Status != "" {
		h.metrics.Transitions.WithLabelValues(string(b.Status)).Inc()
	}
	h.cache.Invalidate(c.Request.Context(), oldDate)
	h.cache.Invalidate(c.Request.Context(), b.Date.Format("2006-01-02"))
	h.log.Infow("booking updated", "id", b.ID, "status", b.Status)

	c.JSON(http.StatusOK, toResponse(b))
}

// CancelBooking is the DELETE alias for a transition to CANCELLED.
func (h *Handler) CancelBooking(c *gin.Context) {
	b, err := h.store.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.domainErr(c, err)
		return
	}

	updated, err := booking.Transition(*b, model.StatusCancelled, c.GetString(middleware.UserIDKey))
	if err != nil {
		h.metrics.RejectedTransitions.Inc()
		h.domainErr(c, err)
		return
	}

	if err := h.store.UpdateBooking(c.Request.Context(), &updated); err != nil {
		h.domainErr(c, err)
		return
	}

	h.metrics.Transitions.WithLabelValues(string(model.StatusCancelled)).Inc()
	h.cache.Invalidate(c.Request.Context(), updated.Date.Format("2006-01-02"))
	h.log.Infow("booking cancelled", "id", updated.ID)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Availability lists the free slots for a date so the form can grey out
// taken ones.
func (h *Handler) Availability(c *gin.Context) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	if free, ok := h.cache.Get(c.Request.Context(), dateStr); ok {
		c.JSON(http.StatusOK, gin.H{"date": dateStr, "slots": free})
		return
	}

	occupied, err := h.store.OccupiedSlots(c.Request.Context(), date)
	if err != nil {
		h.domainErr(c, err)
		return
	}

	taken := make(map[string]bool, len(occupied))
	for _, s := range occupied {
		taken[s] = true
	}
	free := make([]string, 0, len(daySlots))
	for _, s := range daySlots {
		if !taken[s] {
			free = append(free, s)
		}
	}

	h.cache.Set(c.Request.Context(), dateStr, free)
	c.JSON(http.StatusOK, gin.H{"date": dateStr, "slots": free})
}
