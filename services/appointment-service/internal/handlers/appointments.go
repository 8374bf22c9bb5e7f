package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/appointly/appointly/libs/outbox"
	"github.com/appointly/appointly/services/appointment-service/internal/csvexport"
	"github.com/appointly/appointly/services/appointment-service/internal/listview"
	"github.com/appointly/appointly/services/appointment-service/internal/model"
	"github.com/appointly/appointly/services/appointment-service/internal/storage"
)

type AppointmentHandler struct {
	repo       *storage.AppointmentRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	loc        *time.Location
}

func NewAppointmentHandler(repo *storage.AppointmentRepository, outboxRepo *outbox.Repository, logger *slog.Logger, loc *time.Location) *AppointmentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
		loc:        loc,
	}
}

func userIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

type appointmentRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Type            string `json:"type"`
	Location        string `json:"location"`
	Notes           string `json:"notes"`
}

type appointmentItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Type            string `json:"type,omitempty"`
	Location        string `json:"location,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Status          string `json:"status"`
	Reminder24hSent bool   `json:"reminder_24h_sent"`
	Reminder1hSent  bool   `json:"reminder_1h_sent"`
	CreatedAt       string `json:"created_at"`
}

func toItem(appt model.Appointment) appointmentItem {
	status := appt.Status
	if status == "" {
		status = model.StatusConfirmed
	}
	return appointmentItem{
		ID:              appt.ID,
		Name:            appt.Name,
		Email:           appt.Email,
		Date:            appt.Date,
		Time:            appt.TimeOfDay,
		DurationMinutes: appt.DurationMinutes,
		Type:            appt.Type,
		Location:        appt.Location,
		Notes:           appt.Notes,
		Status:          status,
		Reminder24hSent: appt.Reminder24hSent,
		Reminder1hSent:  appt.Reminder1hSent,
		CreatedAt:       appt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Collection handles /api/v1/appointments.
func (h *AppointmentHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Item handles /api/v1/appointments/{id}.
func (h *AppointmentHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/appointments/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.cancel(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AppointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	appt, errMsg := h.validate(req)
	if errMsg != "" {
		http.Error(w, errMsg, http.StatusBadRequest)
		return
	}
	appt.ID = uuid.NewString()
	appt.UserID = userID
	appt.Status = model.StatusConfirmed

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Create(ctx, tx, &appt); err != nil {
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	if err := h.insertEvent(ctx, tx, "appointment.created.v1", appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toItem(appt))
}

func (h *AppointmentHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	appt, err := h.repo.Get(r.Context(), userID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(toItem(appt))
}

func (h *AppointmentHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	appt, errMsg := h.validate(req)
	if errMsg != "" {
		http.Error(w, errMsg, http.StatusBadRequest)
		return
	}
	appt.ID = id
	appt.UserID = userID

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := h.repo.GetForUpdate(ctx, tx, userID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if current.Cancelled() {
		http.Error(w, "appointment is cancelled", http.StatusConflict)
		return
	}

	if err := h.repo.Update(ctx, tx, &appt); err != nil {
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		return
	}

	// Rescheduling keeps sent reminder flags; surface the stored values.
	appt.Status = current.Status
	appt.Reminder24hSent = current.Reminder24hSent
	appt.Reminder1hSent = current.Reminder1hSent
	appt.CreatedAt = current.CreatedAt

	if err := h.insertEvent(ctx, tx, "appointment.updated.v1", appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(toItem(appt))
}

func (h *AppointmentHandler) cancel(w http.ResponseWriter, r *http.Request, id string) {
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, userID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Cancelled() {
		h.writeCancelResponse(w, appt.ID)
		return
	}

	if _, err := h.repo.Cancel(ctx, tx, userID, id); err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}
	appt.Status = model.StatusCancelled

	if err := h.insertEvent(ctx, tx, "appointment.cancelled.v1", appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, appt.ID)
}

func (h *AppointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	appts, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	filtered := listview.Apply(appts, queryFromRequest(r), time.Now().In(h.loc))
	items := make([]appointmentItem, 0, len(filtered))
	for _, appt := range filtered {
		items = append(items, toItem(appt))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *AppointmentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	today := time.Now().In(h.loc).Format("2006-01-02")
	stats, err := h.repo.StatsByUser(r.Context(), userID, today)
	if err != nil {
		http.Error(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(stats)
}

func (h *AppointmentHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing X-User-Id", http.StatusUnauthorized)
		return
	}

	appts, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	filtered := listview.Apply(appts, queryFromRequest(r), time.Now().In(h.loc))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="appointments.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := csvexport.Write(w, filtered); err != nil {
		h.logger.Error("csv export failed", "err", err)
	}
}

func (h *AppointmentHandler) validate(req appointmentRequest) (model.Appointment, string) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if req.Name == "" || req.Email == "" || req.Date == "" || req.Time == "" {
		return model.Appointment{}, "name, email, date and time required"
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return model.Appointment{}, "date must be YYYY-MM-DD"
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return model.Appointment{}, "time must be HH:MM"
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 30
	}
	if duration > 8*60 {
		return model.Appointment{}, "duration_minutes too large"
	}
	return model.Appointment{
		Name:            req.Name,
		Email:           req.Email,
		Date:            req.Date,
		TimeOfDay:       req.Time,
		DurationMinutes: duration,
		Type:            strings.TrimSpace(req.Type),
		Location:        strings.TrimSpace(req.Location),
		Notes:           strings.TrimSpace(req.Notes),
	}, ""
}

func (h *AppointmentHandler) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"user_id":        appt.UserID,
		"name":           appt.Name,
		"email":          appt.Email,
		"date":           appt.Date,
		"time":           appt.TimeOfDay,
		"status":         appt.Status,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func (h *AppointmentHandler) writeCancelResponse(w http.ResponseWriter, id string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":     id,
		"status": model.StatusCancelled,
	})
}

func queryFromRequest(r *http.Request) listview.Query {
	return listview.Query{
		Search: r.URL.Query().Get("q"),
		Range:  listview.ParseRange(r.URL.Query().Get("range")),
		Sort:   listview.ParseSort(r.URL.Query().Get("sort")),
	}
}
