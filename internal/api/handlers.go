package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"spacebook/internal/models"
	"spacebook/internal/reservation"
)

type createBookingRequest struct {
	ClientID  int64  `json:"client_id"`
	SpaceID   int64  `json:"space_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type bookingResponse struct {
	Booking      *models.Booking `json:"booking"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := time.Parse(time.RFC3339, body.StartTime)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "start_time must be RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, body.EndTime)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "end_time must be RFC 3339")
		return
	}

	booking, clientSecret, err := s.manager.CreateBooking(r.Context(), reservation.CreateRequest{
		ClientID:  body.ClientID,
		SpaceID:   body.SpaceID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bookingResponse{Booking: booking, ClientSecret: clientSecret})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	booking, err := s.manager.GetBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: booking})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	booking, err := s.manager.CancelBooking(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: booking})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "from must be RFC 3339")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "to must be RFC 3339")
		return
	}

	bookings, err := s.manager.SpaceBookings(r.Context(), id, from, to)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	type window struct {
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
		Status    string    `json:"status"`
	}
	busy := make([]window, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, window{StartTime: b.StartTime, EndTime: b.EndTime, Status: b.Status.String()})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"space_id": id,
		"from":     from,
		"to":       to,
		"busy":     busy,
	})
}

// writeDomainError maps the reservation error taxonomy onto HTTP status
// codes.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reservation.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, reservation.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reservation.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, reservation.ErrPolicyViolation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, reservation.ErrPaymentGateway):
		writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
