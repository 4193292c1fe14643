package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/BenWork17/Vexeviet-BE/internal/model"
	"github.com/BenWork17/Vexeviet-BE/internal/service"
)

// bookingView is the wire shape for a booking aggregate.
type bookingView struct {
	ID                 string   `json:"id"`
	BookingCode        string   `json:"booking_code"`
	RouteID            string   `json:"route_id"`
	DepartureDate      string   `json:"departure_date"`
	Status             string   `json:"status"`
	Seats              []string `json:"seats"`
	TotalPrice         int64    `json:"total_price"`
	PaymentDeadline    string   `json:"payment_deadline"`
	ConfirmedAt        *string  `json:"confirmed_at,omitempty"`
	CancelledAt        *string  `json:"cancelled_at,omitempty"`
	CancellationReason *string  `json:"cancellation_reason,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

func toBookingView(b *model.Booking) bookingView {
	v := bookingView{
		ID:                 b.ID,
		BookingCode:        b.BookingCode,
		RouteID:            b.RouteID,
		DepartureDate:      b.DepartureDate.UTC().Format("2006-01-02"),
		Status:             b.Status,
		Seats:              b.Seats,
		TotalPrice:         b.TotalPrice,
		PaymentDeadline:    b.PaymentDeadline.UTC().Format(time.RFC3339),
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.ConfirmedAt != nil {
		s := b.ConfirmedAt.UTC().Format(time.RFC3339)
		v.ConfirmedAt = &s
	}
	if b.CancelledAt != nil {
		s := b.CancelledAt.UTC().Format(time.RFC3339)
		v.CancelledAt = &s
	}
	return v
}

// passengerBody is one traveller entry in a booking request.  The
// passenger at index i is assigned the seat at index i.
type passengerBody struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	IDNumber  *string `json:"id_number,omitempty"`
}

// CreateBooking handles POST /v1/bookings.  The Idempotency-Key header
// is mandatory: retrying with the same key returns the original booking
// with 200 instead of creating a second one.  The body carries the
// route, date, seats, passengers and the per-seat price.  A fresh
// booking is returned with 201; seat conflicts return 409 with the full
// conflict list.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Idempotency-Key header is required"})
	}
	var body struct {
		RouteID    string          `json:"route_id"`
		Date       string          `json:"date"`
		Seats      []string        `json:"seats"`
		Passengers []passengerBody `json:"passengers"`
		SeatPrice  int64           `json:"seat_price"`
		TTLSeconds int             `json:"ttl_seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.RouteID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "route_id is required"})
	}
	date, err := parseDate(body.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	passengers := make([]service.PassengerInput, 0, len(body.Passengers))
	for _, p := range body.Passengers {
		if p.FirstName == "" || p.LastName == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "passenger first_name and last_name are required"})
		}
		passengers = append(passengers, service.PassengerInput{
			FirstName: p.FirstName,
			LastName:  p.LastName,
			IDNumber:  p.IDNumber,
		})
	}

	booking, err := h.Svc.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		UserID:         userID,
		RouteID:        body.RouteID,
		DepartureDate:  date,
		Seats:          body.Seats,
		Passengers:     passengers,
		SeatPrice:      body.SeatPrice,
		IdempotencyKey: key,
		HoldTTL:        time.Duration(body.TTLSeconds) * time.Second,
	})
	if err != nil {
		return domainError(c, err)
	}
	// a replayed key returns the original booking, which may have
	// moved past PENDING by now
	status := http.StatusCreated
	if booking.Status != model.BookingStatusPending {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{"booking": toBookingView(booking)})
}

// ConfirmBooking handles POST /v1/bookings/:id/confirm.  It is the
// entry point for the payment collaborator: a PENDING booking inside
// its payment window moves to CONFIRMED and its seats become BOOKED.
// Confirming after the deadline returns 410; confirming a booking that
// already left PENDING returns 409.
func (h *BookingHandler) ConfirmBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	// ownership check before the transition so foreign bookings 404
	if _, err := h.Svc.GetBooking(c.Request().Context(), id, userID); err != nil {
		return domainError(c, err)
	}
	booking, err := h.Svc.ConfirmBooking(c.Request().Context(), id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingView(booking)})
}

// CancelBooking handles DELETE /v1/bookings/:id.  The optional body
// carries a cancellation reason.  PENDING and CONFIRMED bookings cancel
// and release their seats; terminal bookings return 409; bookings owned
// by other users return 404.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	// body is optional on DELETE
	_ = c.Bind(&body)
	booking, err := h.Svc.CancelBooking(c.Request().Context(), id, userID, body.Reason)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingView(booking)})
}

// GetBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	booking, err := h.Svc.GetBooking(c.Request().Context(), id, userID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingView(booking)})
}

// GetBookingByCode handles GET /v1/bookings/code/:code, the lookup used
// at boarding.
func (h *BookingHandler) GetBookingByCode(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	code := c.Param("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking code"})
	}
	booking, err := h.Svc.GetBookingByCode(c.Request().Context(), code, userID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingView(booking)})
}

// ListBookings handles GET /v1/my-bookings.  It returns the current
// user's bookings newest first; an empty list is a 200 with no items.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Svc.ListBookings(c.Request().Context(), userID)
	if err != nil {
		return domainError(c, err)
	}
	items := make([]bookingView, 0, len(bookings))
	for i := range bookings {
		items = append(items, toBookingView(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
