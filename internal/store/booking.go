package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"dispatch-booking-api/internal/booking"
	"dispatch-booking-api/internal/model"
)

const bookingCols = `b.id, b.client_name, b.phone, b.address, b.lat, b.lng,
	        b.date, b.time, b.time_slot, b.urgency, b.problem_type, b.notes,
	        b.source, b.status, b.technician_id, b.created_at, b.updated_at,
	        t.id, t.name, t.phone`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	b := &model.Booking{}
	var techID, techName, techPhone *string
	err := row.Scan(
		&b.ID, &b.ClientName, &b.Phone, &b.Address, &b.Lat, &b.Lng,
		&b.Date, &b.Time, &b.TimeSlot, &b.Urgency, &b.ProblemType, &b.Notes,
		&b.Source, &b.Status, &b.TechnicianID, &b.CreatedAt, &b.UpdatedAt,
		&techID, &techName, &techPhone,
	)
	if err != nil {
		return nil, err
	}
	if techID != nil {
		b.Technician = &model.TechnicianSummary{ID: *techID, Name: *techName, Phone: *techPhone}
	}
	return b, nil
}

// slotConflict reports whether err is the partial unique index on active
// (date, time_slot) rejecting the write.
func slotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "bookings_active_slot"
}

func (s *Store) CreateBooking(ctx context.Context, b *model.Booking) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO bookings
		   (id, client_name, phone, address, lat, lng, date, time, time_slot,
		    urgency, problem_type, notes, source, status, technician_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 RETURNING created_at, updated_at`,
		b.ID, b.ClientName, b.Phone, b.Address, b.Lat, b.Lng, b.Date, b.Time,
		b.TimeSlot, b.Urgency, b.ProblemType, b.Notes, b.Source, b.Status, b.TechnicianID,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if slotConflict(err) {
		// a concurrent submission won the slot between check and insert
		return booking.ErrSlotTaken
	}
	return err
}

// SlotTaken is the advisory pre-check; the unique index is authoritative.
func (s *Store) SlotTaken(ctx context.Context, date time.Time, timeSlot string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM bookings
		   WHERE date = $1 AND time_slot = $2
		     AND status NOT IN ('CANCELLED','COMPLETED'))`,
		date, timeSlot,
	).Scan(&exists)
	return exists, err
}

type BookingFilter struct {
	Date    *time.Time
	Status  *model.Status
	Urgency *model.Urgency
}

func (s *Store) ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	q := `SELECT ` + bookingCols + `
	      FROM bookings b
	      LEFT JOIN users t ON t.id = b.technician_id
	      WHERE 1=1`
	var args []any

	if f.Date != nil {
		args = append(args, *f.Date)
		q += fmt.Sprintf(" AND b.date = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(" AND b.status = $%d", len(args))
	}
	if f.Urgency != nil {
		args = append(args, *f.Urgency)
		q += fmt.Sprintf(" AND b.urgency = $%d", len(args))
	}

	// HIGH first, then by date and start time
	q += ` ORDER BY CASE b.urgency WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
	       b.date ASC, b.time ASC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(s.pool.QueryRow(ctx,
		`SELECT `+bookingCols+`
		 FROM bookings b
		 LEFT JOIN users t ON t.id = b.technician_id
		 WHERE b.id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	return b, err
}

func (s *Store) UpdateBooking(ctx context.Context, b *model.Booking) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bookings
		 SET date=$1, time=$2, time_slot=$3, urgency=$4, notes=$5,
		     status=$6, technician_id=$7, updated_at=NOW()
		 WHERE id=$8`,
		b.Date, b.Time, b.TimeSlot, b.Urgency, b.Notes,
		b.Status, b.TechnicianID, b.ID,
	)
	if slotConflict(err) {
		return booking.ErrSlotTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

// OccupiedSlots returns the active slot strings for a date, for the
// availability endpoint.
func (s *Store) OccupiedSlots(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT time_slot FROM bookings
		 WHERE date = $1 AND status NOT IN ('CANCELLED','COMPLETED')
		 ORDER BY time_slot`, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}
