package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"dispatch-booking-api/internal/auth"
	"dispatch-booking-api/internal/handler"
	"dispatch-booking-api/internal/middleware"
	"dispatch-booking-api/internal/model"
	"dispatch-booking-api/internal/store"
	"dispatch-booking-api/pkg/logger"
	"dispatch-booking-api/pkg/metrics"
)

var testMetrics *metrics.Metrics

func getMetrics() *metrics.Metrics {
	// prometheus collectors register globally, build them once
	if testMetrics == nil {
		testMetrics = metrics.New("dispatch_test")
	}
	return testMetrics
}

type env struct {
	router *gin.Engine
	store  *store.Store
	pool   *pgxpool.Pool
	secret string
}

func setup(t *testing.T) *env {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	secret := os.Getenv("JWT_SECRET")
	if dbURL == "" || secret == "" {
		t.Skip("DATABASE_URL or JWT_SECRET not set")
	}
	gin.SetMode(gin.TestMode)

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pool.Close)

	st := store.New(pool)
	h := handler.New(st, nil, getMetrics(), logger.New("error"), secret)
	return &env{
		router: h.Router(middleware.NewRateLimiter(1000, 1000)),
		store:  st,
		pool:   pool,
		secret: secret,
	}
}

func (e *env) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, w.Body.String())
	}
	return out
}

func seedTechnician(t *testing.T, e *env) (id, token string) {
	t.Helper()
	hash, err := auth.HashPassword("testpass123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        fmt.Sprintf("tech-%s@test.com", uuid.New().String()[:8]),
		PasswordHash: hash,
		Name:         "Test Technician",
		Phone:        "+5511900000000",
		Role:         "TECHNICIAN",
	}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed technician: %v", err)
	}
	tok, err := auth.MakeToken(u.ID, u.Role, e.secret)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return u.ID, tok
}

func bookingBody(date, slot string) map[string]any {
	return map[string]any{
		"clientName":  "Maria Santos",
		"phone":       "+5511999887766",
		"address":     "Rua das Flores, 123",
		"date":        date,
		"timeSlot":    slot,
		"problemType": "short circuit",
	}
}

// testDate returns a date far enough out to be empty, offset so tests don't
// collide with each other
func testDate(daysFromNow int) string {
	return time.Now().AddDate(0, 0, daysFromNow).Format("2006-01-02")
}

func createBooking(t *testing.T, e *env, date, slot string) map[string]any {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/bookings", bookingBody(date, slot), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create booking: status %d, body %s", w.Code, w.Body.String())
	}
	b := decode(t, w)
	id := b["id"].(string)
	t.Cleanup(func() {
		e.pool.Exec(context.Background(), `DELETE FROM bookings WHERE id = $1`, id)
	})
	return b
}

// ----- auth -----

func TestLogin(t *testing.T) {
	e := setup(t)

	hash, _ := auth.HashPassword("testpass123")
	email := fmt.Sprintf("tech-%s@test.com", uuid.New().String()[:8])
	u := &model.User{
		ID: uuid.New().String(), Email: email, PasswordHash: hash,
		Name: "Login Tech", Role: "TECHNICIAN",
	}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "testpass123",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["token"] == "" || resp["token"] == nil {
		t.Fatal("empty token")
	}
	if resp["refreshToken"] == "" || resp["refreshToken"] == nil {
		t.Fatal("empty refresh token")
	}
	if resp["name"] != "Login Tech" {
		t.Errorf("name: got %v", resp["name"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	e := setup(t)

	hash, _ := auth.HashPassword("testpass123")
	email := fmt.Sprintf("tech-%s@test.com", uuid.New().String()[:8])
	e.store.CreateUser(context.Background(), &model.User{
		ID: uuid.New().String(), Email: email, PasswordHash: hash,
		Name: "X", Role: "TECHNICIAN",
	})

	w := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "wrongpassword",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	e := setup(t)

	hash, _ := auth.HashPassword("testpass123")
	email := fmt.Sprintf("tech-%s@test.com", uuid.New().String()[:8])
	e.store.CreateUser(context.Background(), &model.User{
		ID: uuid.New().String(), Email: email, PasswordHash: hash,
		Name: "X", Role: "TECHNICIAN",
	})

	w := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "testpass123",
	}, "")
	raw := decode(t, w)["refreshToken"].(string)

	w = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": raw}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: status %d, body %s", w.Code, w.Body.String())
	}
	if decode(t, w)["token"] == nil {
		t.Fatal("no new access token")
	}

	// old token was rotated out
	w = e.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": raw}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 reusing rotated token, got %d", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	e := setup(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/bookings"},
		{http.MethodGet, "/api/bookings/" + uuid.New().String()},
		{http.MethodPut, "/api/bookings/" + uuid.New().String()},
		{http.MethodDelete, "/api/bookings/" + uuid.New().String()},
	} {
		w := e.do(t, tc.method, tc.path, map[string]string{}, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, w.Code)
		}
	}
}

// ----- booking creation -----

func TestCreateBooking(t *testing.T) {
	e := setup(t)

	b := createBooking(t, e, testDate(100), "14:00-15:00")
	if b["id"] == "" {
		t.Fatal("empty id")
	}
	if b["status"] != "SCHEDULED" {
		t.Errorf("status: got %v", b["status"])
	}
	if b["urgency"] != "MEDIUM" {
		t.Errorf("default urgency: got %v", b["urgency"])
	}
	if b["time"] != "14:00" {
		t.Errorf("default time: got %v", b["time"])
	}
	if b["source"] != "web" {
		t.Errorf("default source: got %v", b["source"])
	}
	if b["technicianId"] != nil {
		t.Errorf("technician should be unassigned, got %v", b["technicianId"])
	}
}

func TestCreateBookingValidation(t *testing.T) {
	e := setup(t)

	tests := []struct {
		name  string
		strip string
	}{
		{"missing clientName", "clientName"},
		{"missing phone", "phone"},
		{"missing address", "address"},
		{"missing date", "date"},
		{"missing timeSlot", "timeSlot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := bookingBody(testDate(101), "09:00-10:00")
			delete(body, tt.strip)
			w := e.do(t, http.MethodPost, "/api/bookings", body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestCreateBookingConflict(t *testing.T) {
	e := setup(t)
	date := testDate(102)

	createBooking(t, e, date, "14:00-15:00")

	w := e.do(t, http.MethodPost, "/api/bookings", bookingBody(date, "14:00-15:00"), "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d (body %s)", w.Code, w.Body.String())
	}

	// a different slot on the same day is fine
	w = e.do(t, http.MethodPost, "/api/bookings", bookingBody(date, "15:00-16:00"), "")
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 for free slot, got %d", w.Code)
	}
	b := decode(t, w)
	t.Cleanup(func() {
		e.pool.Exec(context.Background(), `DELETE FROM bookings WHERE id = $1`, b["id"])
	})
}

func TestCancelledSlotReusable(t *testing.T) {
	e := setup(t)
	_, tok := seedTechnician(t, e)
	date := testDate(103)

	b := createBooking(t, e, date, "10:00-11:00")

	w := e.do(t, http.MethodDelete, "/api/bookings/"+b["id"].(string), nil, tok)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status %d, body %s", w.Code, w.Body.String())
	}

	// cancelled booking no longer occupies the slot
	w = e.do(t, http.MethodPost, "/api/bookings", bookingBody(date, "10:00-11:00"), "")
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 after cancellation, got %d (body %s)", w.Code, w.Body.String())
	}
	nb := decode(t, w)
	t.Cleanup(func() {
		e.pool.Exec(context.Background(), `DELETE FROM bookings WHERE id = $1`, nb["id"])
	})
}

// ----- listing -----

func TestListBookingsOrderAndFilter(t *testing.T) {
	e := setup(t)
	_, tok := seedTechnician(t, e)
	date := testDate(104)

	low := bookingBody(date, "08:00-09:00")
	low["urgency"] = "LOW"
	high := bookingBody(date, "16:00-17:00")
	high["urgency"] = "HIGH"
	mid := bookingBody(date, "11:00-12:00")

	for _, body := range []map[string]any{low, high, mid} {
		w := e.do(t, http.MethodPost, "/api/bookings", body, "")
		if w.Code != http.StatusCreated {
			t.Fatalf("seed booking: status %d", w.Code)
		}
		b := decode(t, w)
		t.Cleanup(func() {
			e.pool.Exec(context.Background(), `DELETE FROM bookings WHERE id = $1`, b["id"])
		})
	}

	w := e.do(t, http.MethodGet, "/api/bookings?date="+date, nil, tok)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status %d", w.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 bookings, got %d", len(list))
	}
	// HIGH first, LOW last
	if list[0]["urgency"] != "HIGH" || list[2]["urgency"] != "LOW" {
		t.Errorf("bad urgency order: %v %v %v", list[0]["urgency"], list[1]["urgency"], list[2]["urgency"])
	}

	w = e.do(t, http.MethodGet, "/api/bookings?date="+date+"&urgency=HIGH", nil, tok)
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode filtered list: %v", err)
	}
	if len(list) != 1 || list[0]["urgency"] != "HIGH" {
		t.Errorf("urgency filter: got %d items", len(list))
	}
}

func TestGetBookingNotFound(t *testing.T) {
	e := setup(t)
	_, tok := seedTechnician(t, e)

	w := e.do(t, http.MethodGet, "/api/bookings/"+uuid.New().String(), nil, tok)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ----- lifecycle -----

func TestAcceptAttachesTechnician(t *testing.T) {
	e := setup(t)
	techID, tok := seedTechnician(t, e)

	b := createBooking(t, e, testDate(105), "13:00-14:00")

	w := e.do(t, http.MethodPut, "/api/bookings/"+b["id"].(string),
		map[string]string{"status": "ACCEPTED"}, tok)
	if w.Code != http.StatusOK {
		t.Fatalf("accept: status %d, body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["status"] != "ACCEPTED" {
		t.Errorf("status: got %v", resp["status"])
	}
	if resp["technicianId"] != techID {
		t.Errorf("technicianId: got %v, want %s", resp["technicianId"], techID)
	}
}

func TestAcceptForeignAssignmentRejected(t *testing.T) {
	e := setup(t)
	tech1, _ := seedTechnician(t, e)
	_, tok2 := seedTechnician(t, e)

	b := createBooking(t, e, testDate(106), "13:00-14:00")
	id := b["id"].(string)

	// pre-assign the booking to tech1 while still SCHEDULED
	if _, err := e.pool.Exec(context.Background(),
		`UPDATE bookings SET technician_id = $1 WHERE id = $2`, tech1, id); err != nil {
		t.Fatalf("assign: %v", err)
	}

	w := e.do(t, http.MethodPut, "/api/bookings/"+id, map[string]string{"status": "ACCEPTED"}, tok2)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 accepting a foreign booking, got %d (body %s)", w.Code, w.Body.String())
	}
}

func TestFullLifecycle(t *testing.T) {
	e := setup(t)
	_, tok := seedTechnician(t, e)

	b := createBooking(t, e, testDate(107), "09:00-10:00")
	id := b["id"].(string)

	for _, target := range []string{"ACCEPTED", "IN_PROGRESS", "COMPLETED"} {
		w := e.do(t, http.MethodPut, "/api/bookings/"+id, map[string]string{"status": target}, tok)
		if w.Code != http.StatusOK {
			t.Fatalf("transition to %s: status %d, body %s", target, w.Code, w.Body.String())
		}
		if got := decode(t, w)["status"]; got != target {
			t.Errorf("status after transition: got %v, want %s", got, target)
		}
	}

	// COMPLETED is terminal
	w := e.do(t, http.MethodPut, "/api/bookings/"+id, map[string]string{"status": "CANCELLED"}, tok)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 out of COMPLETED, got %d", w.Code)
	}
}

func TestSkipAcceptedRejected(t *testing.T) {
	e := setup(t)
	_, tok := seedTechnician(t, e)

	b := createBooking(t, e, testDate(108), "09:00-10:00")

	w := e.do(t, http.MethodPut, "/api/bookings/"+b["id"].(string),
		map[string]string{"status": "IN_PROGRESS"}, tok)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for SCHEDULED->IN_PROGRESS, got %d", w.Code)
	}
}

func TestCancelInProgressRejected(t *testing.T) {
	e := setup(t)
	_, tok := seedTechnician(t, e)

	b := createBooking(t, e, testDate(109), "09:00-10:00")
	id := b["id"].(string)

	for _, target := range []string{"ACCEPTED", "IN_PROGRESS"} {
		if w := e.do(t, http.MethodPut, "/api/bookings/"+id, map[string]string{"status": target}, tok); w.Code != http.StatusOK {
			t.Fatalf("transition to %s: status %d", target, w.Code)
		}
	}

	w := e.do(t, http.MethodDelete, "/api/bookings/"+id, nil, tok)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 cancelling IN_PROGRESS, got %d", w.Code)
	}

	// status untouched
	w = e.do(t, http.MethodGet, "/api/bookings/"+id, nil, tok)
	if got := decode(t, w)["status"]; got != "IN_PROGRESS" {
		t.Errorf("status after rejected cancel: got %v", got)
	}
}

func TestFieldEditWithoutStatusChange(t *testing.T) {
	e := setup(t)
	_, tok := seedTechnician(t, e)

	b := createBooking(t, e, testDate(110), "09:00-10:00")

	w := e.do(t, http.MethodPut, "/api/bookings/"+b["id"].(string),
		map[string]any{"notes": "gate code 1234", "urgency": "HIGH"}, tok)
	if w.Code != http.StatusOK {
		t.Fatalf("edit: status %d, body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["notes"] != "gate code 1234" {
		t.Errorf("notes: got %v", resp["notes"])
	}
	if resp["urgency"] != "HIGH" {
		t.Errorf("urgency: got %v", resp["urgency"])
	}
	if resp["status"] != "SCHEDULED" {
		t.Errorf("status should be untouched, got %v", resp["status"])
	}
}

// ----- availability -----

func TestAvailability(t *testing.T) {
	e := setup(t)
	date := testDate(111)

	createBooking(t, e, date, "14:00-15:00")

	w := e.do(t, http.MethodGet, "/api/bookings/availability?date="+date, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("availability: status %d", w.Code)
	}
	resp := decode(t, w)
	slots, ok := resp["slots"].([]any)
	if !ok {
		t.Fatalf("no slots array in %s", w.Body.String())
	}
	for _, s := range slots {
		if s == "14:00-15:00" {
			t.Error("occupied slot listed as free")
		}
	}
}

func TestAvailabilityRequiresDate(t *testing.T) {
	e := setup(t)

	w := e.do(t, http.MethodGet, "/api/bookings/availability", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
