package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"repairconnect/internal/config"
	"repairconnect/internal/domain"
	"repairconnect/internal/events"
	"repairconnect/internal/metrics"
	"repairconnect/internal/models"
	"repairconnect/internal/repository"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// BookingExporter renders archived bookings into a report file and
// returns its path.
type BookingExporter interface {
	ExportBookings(ctx context.Context, startDate, endDate string) (string, error)
}

// HTTPServer is the record store's REST facade. All responses use the
// {success, ...} envelope; errors carry {success:false, error}.
type HTTPServer struct {
	cfg      config.ServerConfig
	store    domain.RecordStore
	bus      domain.EventPublisher
	exporter BookingExporter
	server   *http.Server
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.ServerConfig, authCfg config.AuthConfig, store domain.RecordStore, bus domain.EventPublisher, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, store: store, bus: bus}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	auth := NewAuth(authCfg, cfg.RateLimit)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(&srv.log))
	r.Use(metricsMiddleware)

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Wrap)

		r.Get("/mechanics", srv.handleListMechanics)
		r.Get("/mechanics/{mechanicID}/ratings", srv.handleListRatings)
		r.Post("/bookings", srv.handleCreateBooking)
		r.Get("/bookings/{id}", srv.handleGetBooking)
		r.Patch("/bookings/{id}/status", srv.handleUpdateStatus)
		r.Get("/chat/{bookingID}", srv.handleListMessages)
		r.Post("/chat/{bookingID}", srv.handleSendMessage)
		r.Post("/ratings", srv.handleSubmitRating)
		r.Get("/exports/bookings", srv.handleExportBookings)
	})

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.Timeouts.ReadHeaderSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Timeouts.WriteSeconds) * time.Second,
	}

	return srv
}

// SetExporter wires the optional report exporter. Until it is set the
// export endpoint answers 503.
func (s *HTTPServer) SetExporter(exporter BookingExporter) {
	s.exporter = exporter
}

// Handler exposes the routed handler for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleListMechanics(w http.ResponseWriter, r *http.Request) {
	mechanics, err := s.store.ListMechanics(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list mechanics")
		writeError(w, http.StatusInternalServerError, "Failed to fetch mechanics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mechanics": mechanics})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MechanicID string         `json:"mechanicId"`
		Service    string         `json:"service"`
		Date       string         `json:"date"`
		Time       string         `json:"time"`
		Vehicle    models.Vehicle `json:"vehicle"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.MechanicID) == "" {
		writeError(w, http.StatusBadRequest, "mechanicId is required")
		return
	}

	booking := &models.Booking{
		MechanicID: body.MechanicID,
		Service:    body.Service,
		Date:       body.Date,
		Time:       body.Time,
		Vehicle:    body.Vehicle,
		Status:     models.StatusConfirmed,
	}

	if err := s.store.CreateBooking(r.Context(), booking); err != nil {
		s.log.Error().Err(err).Msg("create booking")
		writeError(w, http.StatusInternalServerError, "Failed to create booking")
		return
	}

	metrics.IncBookingCreated()
	s.publishBookingEvent(events.EventBookingCreated, booking)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": booking})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.store.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get booking")
		writeError(w, http.StatusInternalServerError, "Failed to fetch booking")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": booking})
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !models.ValidStatus(body.Status) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", body.Status))
		return
	}

	id := chi.URLParam(r, "id")

	current, err := s.store.GetBooking(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get booking for status update")
		writeError(w, http.StatusInternalServerError, "Failed to update booking")
		return
	}

	// Status only moves forward through the lifecycle.
	if models.StatusIndex(body.Status) < models.StatusIndex(current.Status) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("cannot move status backward from %s to %s", current.Status, body.Status))
		return
	}

	booking, err := s.store.UpdateBookingStatus(r.Context(), id, body.Status)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("update booking status")
		writeError(w, http.StatusInternalServerError, "Failed to update booking")
		return
	}

	metrics.IncStatusTransition(booking.Status)
	s.publishBookingEvent(events.EventStatusChanged, booking)
	if booking.Status == models.StatusCompleted {
		s.publishBookingEvent(events.EventBookingCompleted, booking)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": booking})
}

func (s *HTTPServer) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ListMessages(r.Context(), chi.URLParam(r, "bookingID"))
	if err != nil {
		s.log.Error().Err(err).Msg("list messages")
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": messages})
}

func (s *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
		Image  string `json:"image"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Sender != models.SenderUser && body.Sender != models.SenderMechanic {
		writeError(w, http.StatusBadRequest, "sender must be user or mechanic")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	message := &models.Message{
		BookingID: chi.URLParam(r, "bookingID"),
		Sender:    body.Sender,
		Text:      body.Text,
		Image:     body.Image,
	}

	if err := s.store.AppendMessage(r.Context(), message); err != nil {
		s.log.Error().Err(err).Msg("send message")
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	metrics.IncMessageSent()
	if s.bus != nil {
		_ = s.bus.PublishJSON(events.EventMessageSent, message)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

func (s *HTTPServer) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MechanicID string `json:"mechanicId"`
		BookingID  string `json:"bookingId"`
		Rating     int    `json:"rating"`
		Comment    string `json:"comment"`
		Review     string `json:"review"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !models.ValidRating(body.Rating) {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("rating must be between %d and %d", models.MinRating, models.MaxRating))
		return
	}

	comment := body.Comment
	if comment == "" {
		comment = body.Review
	}

	rating := &models.Rating{
		MechanicID: body.MechanicID,
		BookingID:  body.BookingID,
		Rating:     body.Rating,
		Comment:    comment,
	}

	if err := s.store.CreateRating(r.Context(), rating); err != nil {
		s.log.Error().Err(err).Msg("submit rating")
		writeError(w, http.StatusInternalServerError, "Failed to submit rating")
		return
	}

	metrics.IncRatingSubmitted()
	if s.bus != nil {
		_ = s.bus.PublishJSON(events.EventRatingSubmitted, rating)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rating": rating})
}

func (s *HTTPServer) handleListRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := s.store.ListRatingsByMechanic(r.Context(), chi.URLParam(r, "mechanicID"))
	if err != nil {
		s.log.Error().Err(err).Msg("list ratings")
		writeError(w, http.StatusInternalServerError, "Failed to fetch ratings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ratings": ratings})
}

// handleExportBookings builds an Excel report of archived bookings for
// the requested date range, defaulting to the last 30 days.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	end := r.URL.Query().Get("end")
	if end == "" {
		end = time.Now().Format("2006-01-02")
	}
	start := r.URL.Query().Get("start")
	if start == "" {
		start = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	}

	filePath, err := s.exporter.ExportBookings(r.Context(), start, end)
	if err != nil {
		s.log.Error().Err(err).Str("start", start).Str("end", end).Msg("export bookings")
		writeError(w, http.StatusInternalServerError, "Failed to export bookings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file": filePath})
}

func (s *HTTPServer) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.bus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		MechanicID: booking.MechanicID,
		Service:    booking.Service,
		Status:     booking.Status,
		Date:       booking.Date,
		Time:       booking.Time,
		ChangedAt:  time.Now().UTC(),
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{"success": false, "error": message})
}
