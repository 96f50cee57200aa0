package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/staykit/channel-sync/pkg/app/errors"
	apphttp "github.com/staykit/channel-sync/pkg/app/http"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/channelstore"
)

const maxBodyBytes = 1 << 20 // 1MB limit

// connectionsHTTP serves the channel connection admin endpoints.
type connectionsHTTP struct {
	store    channelstore.Store
	validate *validator.Validate
	logger   *zap.Logger
}

func registerConnectionRoutes(r chi.Router, store channelstore.Store, logger *zap.Logger) {
	h := &connectionsHTTP{
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}

	r.Post("/connections", apphttp.HandleError(h.create))
	r.Get("/connections", apphttp.HandleError(h.list))
	r.Get("/connections/{id}", apphttp.HandleError(h.get))
	r.Post("/connections/{id}/pause", apphttp.HandleError(h.pause))
	r.Post("/connections/{id}/resume", apphttp.HandleError(h.resume))
	r.Get("/connections/{id}/sync-log", apphttp.HandleError(h.syncLog))
	r.Get("/dead-letters", apphttp.HandleError(h.deadLetters))
}

type createConnectionPayload struct {
	PropertyID    string `json:"property_id" validate:"required"`
	ChannelType   string `json:"channel_type" validate:"required"`
	CredentialRef string `json:"credential_ref" validate:"required"`
	SyncEnabled   bool   `json:"sync_enabled"`
}

type connectionResponse struct {
	ID          string     `json:"id"`
	PropertyID  string     `json:"property_id"`
	ChannelType string     `json:"channel_type"`
	SyncEnabled bool       `json:"sync_enabled"`
	Status      string     `json:"status"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toConnectionResponse(conn *channel.Connection) *connectionResponse {
	return &connectionResponse{
		ID:          conn.ID,
		PropertyID:  conn.PropertyID,
		ChannelType: conn.ChannelType,
		SyncEnabled: conn.SyncEnabled,
		Status:      string(conn.Status),
		LastSyncAt:  conn.LastSyncAt,
		CreatedAt:   conn.CreatedAt,
	}
}

func (h *connectionsHTTP) create(w http.ResponseWriter, r *http.Request) error {
	var payload createConnectionPayload
	if err := h.decode(r, &payload); err != nil {
		return err
	}

	conn := &channel.Connection{
		ID:            uuid.NewString(),
		PropertyID:    payload.PropertyID,
		ChannelType:   payload.ChannelType,
		CredentialRef: payload.CredentialRef,
		SyncEnabled:   payload.SyncEnabled,
		Status:        channel.ConnectionPending,
	}
	if err := h.store.CreateConnection(r.Context(), conn); err != nil {
		return err
	}

	created, err := h.store.GetConnection(r.Context(), conn.ID)
	if err != nil {
		return err
	}
	h.writeJSON(w, http.StatusCreated, toConnectionResponse(created))
	return nil
}

func (h *connectionsHTTP) list(w http.ResponseWriter, r *http.Request) error {
	conns, err := h.store.ListConnections(r.Context())
	if err != nil {
		return err
	}
	out := make([]*connectionResponse, len(conns))
	for i, conn := range conns {
		out[i] = toConnectionResponse(conn)
	}
	h.writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *connectionsHTTP) get(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.store.GetConnection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return mapStoreError(err)
	}
	h.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
	return nil
}

func (h *connectionsHTTP) pause(w http.ResponseWriter, r *http.Request) error {
	return h.setStatus(w, r, channel.ConnectionPaused)
}

func (h *connectionsHTTP) resume(w http.ResponseWriter, r *http.Request) error {
	return h.setStatus(w, r, channel.ConnectionActive)
}

func (h *connectionsHTTP) setStatus(w http.ResponseWriter, r *http.Request, status channel.ConnectionStatus) error {
	id := chi.URLParam(r, "id")
	if err := h.store.UpdateConnectionStatus(r.Context(), id, status); err != nil {
		return mapStoreError(err)
	}
	conn, err := h.store.GetConnection(r.Context(), id)
	if err != nil {
		return mapStoreError(err)
	}
	h.writeJSON(w, http.StatusOK, toConnectionResponse(conn))
	return nil
}

type syncLogResponse struct {
	ID               string     `json:"id"`
	Direction        string     `json:"direction"`
	SyncType         string     `json:"sync_type"`
	Status           string     `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsCreated   int        `json:"records_created"`
	RecordsUpdated   int        `json:"records_updated"`
	RecordsFailed    int        `json:"records_failed"`
	ErrorDetail      string     `json:"error_detail,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func (h *connectionsHTTP) syncLog(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	if _, err := h.store.GetConnection(r.Context(), id); err != nil {
		return mapStoreError(err)
	}

	entries, err := h.store.ListSyncLog(r.Context(), id, parseLimit(r, 50))
	if err != nil {
		return err
	}
	out := make([]*syncLogResponse, len(entries))
	for i, entry := range entries {
		out[i] = &syncLogResponse{
			ID:               entry.ID,
			Direction:        string(entry.Direction),
			SyncType:         string(entry.SyncType),
			Status:           string(entry.Status),
			RecordsProcessed: entry.RecordsProcessed,
			RecordsCreated:   entry.RecordsCreated,
			RecordsUpdated:   entry.RecordsUpdated,
			RecordsFailed:    entry.RecordsFailed,
			ErrorDetail:      entry.ErrorDetail,
			StartedAt:        entry.StartedAt,
			CompletedAt:      entry.CompletedAt,
		}
	}
	h.writeJSON(w, http.StatusOK, out)
	return nil
}

type deadLetterResponse struct {
	ID           string          `json:"id"`
	ConnectionID string          `json:"connection_id"`
	Payload      json.RawMessage `json:"payload"`
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"last_error"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (h *connectionsHTTP) deadLetters(w http.ResponseWriter, r *http.Request) error {
	dls, err := h.store.ListDeadLetters(r.Context(), parseLimit(r, 50))
	if err != nil {
		return err
	}
	out := make([]*deadLetterResponse, len(dls))
	for i, dl := range dls {
		out[i] = &deadLetterResponse{
			ID:           dl.ID,
			ConnectionID: dl.ConnectionID,
			Payload:      json.RawMessage(dl.Payload),
			Attempts:     dl.Attempts,
			LastError:    dl.LastError,
			CreatedAt:    dl.CreatedAt,
		}
	}
	h.writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *connectionsHTTP) decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON payload")
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperrors.BadRequestError(err, fmt.Sprintf("validation failed: %s", err))
	}
	return nil
}

func (h *connectionsHTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, channelstore.ErrConnectionNotFound) {
		return apperrors.ResourceNotFoundError(err, "connection not found")
	}
	return err
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
