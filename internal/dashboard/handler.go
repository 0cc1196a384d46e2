// Package dashboard exposes the read-only compliance reporting API consumed
// by the back-office UI.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"compliance-gateway/internal/compliance"
	"compliance-gateway/internal/ledger"
	"compliance-gateway/internal/notify"
	"compliance-gateway/pkg/requestcontext"
)

const defaultEventLimit = 50

// Handler serves the reporting endpoints. All reads go straight to the
// stores; nothing here mutates state.
type Handler struct {
	records   compliance.Store
	events    ledger.Store
	reminders notify.Store
	logger    *slog.Logger
}

// New creates a dashboard Handler.
func New(records compliance.Store, events ledger.Store, reminders notify.Store, logger *slog.Logger) *Handler {
	return &Handler{records: records, events: events, reminders: reminders, logger: logger}
}

// Register mounts the reporting routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/summary", h.handleSummary)
	r.Get("/api/records", h.handleRecords)
	r.Get("/api/events", h.handleEvents)
	r.Get("/api/reminders", h.handleReminders)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.records.Summarize(ctx, requestcontext.Now(ctx))
	if err != nil {
		h.fail(w, r, "summarize records", err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recs, err := h.records.List(ctx)
	if err != nil {
		h.fail(w, r, "list records", err)
		return
	}

	now := requestcontext.Now(ctx)
	out := RecordsListResponse{Records: make([]*RecordResponse, 0, len(recs)), Total: len(recs)}
	for _, rec := range recs {
		out.Records = append(out.Records, &RecordResponse{
			AccountID:        rec.AccountID,
			UserID:           rec.UserID,
			CourseID:         rec.CourseID,
			InstanceID:       rec.InstanceID,
			EnrollmentSource: rec.EnrollmentSource,
			EnrollmentDate:   rec.EnrollmentDate,
			DeadlineDate:     rec.DeadlineDate,
			CompletionDate:   rec.CompletionDate,
			Progress:         rec.Progress,
			Status:           string(rec.Status),
			DaysLeft:         rec.DaysLeft(now),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	envs, err := h.events.ListRecent(ctx, limit)
	if err != nil {
		h.fail(w, r, "list events", err)
		return
	}

	out := EventsListResponse{Events: make([]*EventResponse, 0, len(envs)), Total: len(envs)}
	for _, env := range envs {
		out.Events = append(out.Events, &EventResponse{
			AccountID:  env.AccountID,
			EventID:    env.EventID,
			EventName:  env.EventName,
			EventTime:  env.EventTime,
			Processed:  env.Processed,
			ReceivedAt: env.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rems, err := h.reminders.List(ctx)
	if err != nil {
		h.fail(w, r, "list reminders", err)
		return
	}

	out := RemindersListResponse{Reminders: make([]*ReminderResponse, 0, len(rems)), Total: len(rems)}
	for _, rem := range rems {
		out.Reminders = append(out.Reminders, &ReminderResponse{
			ID:           rem.ID,
			Phone:        rem.Phone,
			Message:      rem.Message,
			ScheduledFor: rem.ScheduledFor,
			SentAt:       rem.SentAt,
			Status:       string(rem.Status),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "dashboard query failed",
		"operation", op,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(r.Context()),
	)
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
