package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// seatSlotView is the wire shape for one occupied seat slot.
type seatSlotView struct {
	SeatNumber  string  `json:"seat_number"`
	Status      string  `json:"status"`
	Price       int64   `json:"price"`
	LockedUntil *string `json:"locked_until,omitempty"`
}

// ListSeats handles GET /v1/routes/:id/seats?date=YYYY-MM-DD.  It
// returns every occupied slot for the route and date; seats absent from
// the response are available.  When a "seats" query parameter is
// supplied (comma-free, repeated), it instead answers an availability
// check for exactly those seats.
func (h *BookingHandler) ListSeats(c echo.Context) error {
	routeID := c.Param("id")
	if routeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route id"})
	}
	date, err := parseDate(c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx := c.Request().Context()

	// availability check for an explicit seat list
	if requested := c.QueryParams()["seats"]; len(requested) > 0 {
		available, conflicts, err := h.Svc.CheckAvailability(ctx, routeID, date, requested)
		if err != nil {
			return domainError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"available": available,
			"conflicts": conflicts,
		})
	}

	slots, err := h.Svc.ListSeats(ctx, routeID, date)
	if err != nil {
		return domainError(c, err)
	}
	views := make([]seatSlotView, 0, len(slots))
	for _, s := range slots {
		v := seatSlotView{SeatNumber: s.SeatNumber, Status: s.Status, Price: s.Price}
		if s.LockedUntil != nil {
			formatted := s.LockedUntil.UTC().Format(time.RFC3339)
			v.LockedUntil = &formatted
		}
		views = append(views, v)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}

// HoldSeats handles POST /v1/routes/:id/hold.  It places a temporary
// all-or-nothing hold on the requested seats.  The body carries the
// departure date, the seat numbers, the per-seat price and an optional
// TTL in seconds; a zero TTL means the configured default.  On success
// it returns 201 with the hold ID and its expiry.  When any seat is
// taken it returns 409 with the full conflict list and holds nothing.
func (h *BookingHandler) HoldSeats(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	routeID := c.Param("id")
	if routeID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid route id"})
	}
	var body struct {
		Date       string   `json:"date"`
		Seats      []string `json:"seats"`
		SeatPrice  int64    `json:"seat_price"`
		TTLSeconds int      `json:"ttl_seconds"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	date, err := parseDate(body.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ttl := time.Duration(body.TTLSeconds) * time.Second
	hold, err := h.Svc.HoldSeats(c.Request().Context(), routeID, date, body.Seats, body.SeatPrice, ttl)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"hold_id":    hold.HoldID,
		"expires_at": hold.ExpiresAt.UTC().Format(time.RFC3339),
		"seats":      body.Seats,
	})
}

// ReleaseHold handles DELETE /v1/routes/:id/hold/:holdId.  It releases
// every seat still held under the hold.  Releasing an unknown or
// already-expired hold is a no-op and still returns 200 so clients can
// retry safely.
func (h *BookingHandler) ReleaseHold(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID := c.Param("holdId")
	if holdID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
	}
	released, err := h.Svc.ReleaseHold(c.Request().Context(), holdID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}
