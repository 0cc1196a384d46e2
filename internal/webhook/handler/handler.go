package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"compliance-gateway/internal/webhook"
	dErrors "compliance-gateway/pkg/domain-errors"
	"compliance-gateway/pkg/requestcontext"
)

// maxBodyBytes bounds inbound payloads. The platform batches at most a few
// hundred events per delivery; 1 MiB is generous.
const maxBodyBytes = 1 << 20

// Signature header names the platform is known to send.
var signatureHeaders = []string{"X-ALM-Signature", "X-Webhook-Signature"}

// Processor is the engine behind the webhook endpoint.
type Processor interface {
	Process(ctx context.Context, body []byte, signature string) (webhook.Receipt, error)
}

// Handler is the thin HTTP layer over the Processor. It owns only transport
// concerns: body reading, header extraction, and response shapes.
type Handler struct {
	processor Processor
	logger    *slog.Logger
}

// New creates a webhook Handler.
func New(processor Processor, logger *slog.Logger) *Handler {
	return &Handler{processor: processor, logger: logger}
}

// Register mounts the webhook routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhook/alm", h.handleReceive)
}

// handleReceive acknowledges every authenticated payload with 200
// {"status":"received"} no matter what processing did: the platform backs
// off and retries on anything else, and retries of a processed event would
// only bounce off the dedup gate anyway.
func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.WarnContext(ctx, "webhook body read failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": string(dErrors.CodeBadRequest)})
		return
	}

	receipt, err := h.processor.Process(ctx, body, extractSignature(r))
	if err != nil {
		// Only signature rejection surfaces as an error; everything else is
		// absorbed into the receipt.
		writeJSON(w, dErrors.ToHTTPStatus(dErrors.CodeOf(err)), map[string]string{
			"error": string(dErrors.CodeOf(err)),
		})
		return
	}

	if receipt.Challenge != "" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": receipt.Challenge})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// extractSignature returns the first populated signature header.
func extractSignature(r *http.Request) string {
	for _, name := range signatureHeaders {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
