package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/BenWork17/Vexeviet-BE/internal/model"
	"github.com/BenWork17/Vexeviet-BE/internal/service"
)

// BookingHandler exposes the seat availability, hold and booking
// lifecycle endpoints.  All state transitions live in the service
// layer; handlers only bind requests, extract identity and translate
// domain errors into HTTP responses.  Methods under /v1 assume the JWT
// middleware has already run and may return 401 when the user ID
// cannot be extracted from the context.
type BookingHandler struct {
	Svc *service.BookingService
}

// NewBookingHandler constructs a BookingHandler.  The service must be
// non-nil.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Svc: svc}
}

// getUserID extracts the authenticated user ID placed in the context by
// the JWT middleware.  User IDs are opaque strings (UUIDs issued by the
// identity service).
func getUserID(c echo.Context) (string, error) {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v, nil
	}
	return "", errors.New("invalid user_id in context")
}

// parseDate parses a departure date in YYYY-MM-DD form.
func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(raw))
}

// domainError translates a domain error into the matching HTTP
// response.  Seat conflicts carry the full list of conflicting seat
// numbers so clients can re-render their selection in one round trip.
func domainError(c echo.Context, err error) error {
	var validation *model.ValidationError
	if errors.As(err, &validation) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validation.Error()})
	}
	var unavailable *model.SeatsUnavailableError
	if errors.As(err, &unavailable) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "some seats are unavailable",
			"conflicts": unavailable.Conflicts,
		})
	}
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, model.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not in a state that allows this operation"})
	case errors.Is(err, model.ErrIdempotencyInFlight):
		return c.JSON(http.StatusConflict, echo.Map{"error": "a request with this idempotency key is already in progress"})
	case errors.Is(err, model.ErrBookingExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "booking payment deadline has passed"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
