package service

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/staykit/channel-sync/pkg/app/errors"
	apphttp "github.com/staykit/channel-sync/pkg/app/http"
	"github.com/staykit/channel-sync/pkg/booking"
	"github.com/staykit/channel-sync/pkg/ledger"
)

const maxBodyBytes = 1 << 20 // 1MB limit

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service  Service
	validate *validator.Validate
	logger   *zap.Logger
}

// RegisterRoutes registers booking lifecycle endpoints on the given chi router.
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}

	r.Post("/bookings", apphttp.HandleError(h.createBooking))
	r.Delete("/bookings/{id}", apphttp.HandleError(h.cancelBooking))
	r.Post("/bookings/{id}/transition", apphttp.HandleError(h.transition))
	r.Get("/properties/{id}/availability", apphttp.HandleError(h.availability))
	r.Post("/blocks", apphttp.HandleError(h.createBlock))
	r.Delete("/blocks/{id}", apphttp.HandleError(h.removeBlock))
}

type bookingResponse struct {
	ID               string `json:"id"`
	PropertyID       string `json:"property_id"`
	GuestName        string `json:"guest_name"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Status           string `json:"status"`
	Source           string `json:"source"`
	ChannelBookingID string `json:"channel_booking_id,omitempty"`
}

func toBookingResponse(b *booking.Booking) *bookingResponse {
	return &bookingResponse{
		ID:               b.ID,
		PropertyID:       b.PropertyID,
		GuestName:        b.GuestName,
		StartDate:        b.Start.Format("2006-01-02"),
		EndDate:          b.End.Format("2006-01-02"),
		Status:           string(b.Status),
		Source:           b.Source,
		ChannelBookingID: b.ChannelBookingID,
	}
}

type createBookingPayload struct {
	PropertyID string `json:"property_id" validate:"required,max=64"`
	GuestName  string `json:"guest_name" validate:"required,max=128"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date" validate:"required"`
}

func (h *HTTP) createBooking(w http.ResponseWriter, r *http.Request) error {
	var payload createBookingPayload
	if err := h.decode(r, &payload); err != nil {
		return err
	}
	start, end, err := parseDates(payload.StartDate, payload.EndDate)
	if err != nil {
		return err
	}

	b, err := h.service.CreateBooking(r.Context(), &booking.CreateBookingRequest{
		PropertyID: payload.PropertyID,
		GuestName:  payload.GuestName,
		Start:      start,
		End:        end,
	})
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, toBookingResponse(b))
	return nil
}

func (h *HTTP) cancelBooking(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	b, err := h.service.CancelBooking(r.Context(), id)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBookingResponse(b))
	return nil
}

type transitionPayload struct {
	Status string `json:"status" validate:"required"`
}

func (h *HTTP) transition(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	var payload transitionPayload
	if err := h.decode(r, &payload); err != nil {
		return err
	}

	b, err := h.service.Transition(r.Context(), id, booking.Status(payload.Status))
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBookingResponse(b))
	return nil
}

type intervalResponse struct {
	ID        string `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Kind      string `json:"kind"`
}

func (h *HTTP) availability(w http.ResponseWriter, r *http.Request) error {
	propertyID := chi.URLParam(r, "id")

	from, err := parseDateParam(r, "from")
	if err != nil {
		return err
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		return err
	}

	records, err := h.service.QueryAvailability(r.Context(), propertyID, from, to)
	if err != nil {
		return err
	}

	resp := struct {
		PropertyID string             `json:"property_id"`
		Occupied   []intervalResponse `json:"occupied"`
	}{PropertyID: propertyID, Occupied: make([]intervalResponse, 0, len(records))}

	for _, rec := range records {
		resp.Occupied = append(resp.Occupied, intervalResponse{
			ID:        rec.ID,
			StartDate: rec.Start.Format("2006-01-02"),
			EndDate:   rec.End.Format("2006-01-02"),
			Kind:      string(rec.Kind),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
	return nil
}

type blockResponse struct {
	ID         string `json:"id"`
	PropertyID string `json:"property_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason,omitempty"`
	Removed    bool   `json:"removed"`
}

func toBlockResponse(blk *booking.Block) *blockResponse {
	return &blockResponse{
		ID:         blk.ID,
		PropertyID: blk.PropertyID,
		StartDate:  blk.Start.Format("2006-01-02"),
		EndDate:    blk.End.Format("2006-01-02"),
		Reason:     blk.Reason,
		Removed:    blk.RemovedAt != nil,
	}
}

type createBlockPayload struct {
	PropertyID string `json:"property_id" validate:"required,max=64"`
	StartDate  string `json:"start_date" validate:"required"`
	EndDate    string `json:"end_date" validate:"required"`
	Reason     string `json:"reason" validate:"max=256"`
}

func (h *HTTP) createBlock(w http.ResponseWriter, r *http.Request) error {
	var payload createBlockPayload
	if err := h.decode(r, &payload); err != nil {
		return err
	}
	start, end, err := parseDates(payload.StartDate, payload.EndDate)
	if err != nil {
		return err
	}

	blk, err := h.service.CreateBlock(r.Context(), &booking.CreateBlockRequest{
		PropertyID: payload.PropertyID,
		Start:      start,
		End:        end,
		Reason:     payload.Reason,
	})
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusCreated, toBlockResponse(blk))
	return nil
}

func (h *HTTP) removeBlock(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	blk, err := h.service.RemoveBlock(r.Context(), id)
	if err != nil {
		return err
	}

	h.writeJSON(w, http.StatusOK, toBlockResponse(blk))
	return nil
}

func (h *HTTP) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperrors.BadRequestError(err, "invalid request: "+err.Error())
	}
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func parseDates(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.BadRequestError(err, "start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.BadRequestError(err, "end_date must be YYYY-MM-DD")
	}
	return start, end, nil
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, apperrors.BadRequestError(ledger.ErrInvalidRange, name+" query parameter required")
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.BadRequestError(err, name+" must be YYYY-MM-DD")
	}
	return t, nil
}
