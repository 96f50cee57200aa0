package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/staykit/channel-sync/pkg/app/errors"
	apphttp "github.com/staykit/channel-sync/pkg/app/http"
	"github.com/staykit/channel-sync/pkg/channel"
	"github.com/staykit/channel-sync/pkg/syncer"
)

// signatureHeader carries the channel's HMAC of the raw payload.
const signatureHeader = "X-Signature"

type webhooksHTTP struct {
	orch   *syncer.Orchestrator
	logger *zap.Logger
}

func registerWebhookRoutes(r chi.Router, orch *syncer.Orchestrator, logger *zap.Logger) {
	h := &webhooksHTTP{orch: orch, logger: logger}
	r.Post("/webhooks/{channel_type}", apphttp.HandleError(h.receive))
}

type webhookResponse struct {
	Status    string `json:"status"`
	BookingID string `json:"booking_id,omitempty"`
}

func (h *webhooksHTTP) receive(w http.ResponseWriter, r *http.Request) error {
	channelType := chi.URLParam(r, "channel_type")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read webhook payload")
	}

	result, err := h.orch.Ingest(r.Context(), channelType, payload, r.Header.Get(signatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, channel.ErrInvalidSignature):
			return apperrors.UnAuthorizedError(err, "invalid webhook signature")
		case errors.Is(err, channel.ErrUnknownChannel):
			return apperrors.ResourceNotFoundError(err, "unknown channel type")
		case errors.Is(err, syncer.ErrMalformedEvent):
			return apperrors.BadRequestError(err, "malformed webhook payload")
		}
		return err
	}

	resp := &webhookResponse{Status: "accepted", BookingID: result.BookingID}
	status := http.StatusAccepted
	if result.Duplicate {
		// Redeliveries acknowledge without reprocessing.
		resp.Status = "duplicate"
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode webhook response", zap.Error(err))
	}
	return nil
}
