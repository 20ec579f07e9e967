package internalhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/solarmarket/creative-rotation/internal/creative"
	"github.com/solarmarket/creative-rotation/internal/eligibility"
	"github.com/solarmarket/creative-rotation/internal/storage"
)

const (
	sessionCookie = "crtn_session"
	visitorCookie = "crtn_visitor"

	eventIDHeader = "X-Event-ID"
)

type creativeResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ImageURL        string `json:"image_url,omitempty"`
	TargetURL       string `json:"target_url"`
	BackgroundColor string `json:"background_color,omitempty"`
	TextColor       string `json:"text_color,omitempty"`
	Priority        int    `json:"priority"`
}

type impressionResponse struct {
	Status           string `json:"status"`
	ImpressionsCount int64  `json:"impressions_count,omitempty"`
}

type clickResponse struct {
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
}

type idResponse struct {
	ID string `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type eventBody struct {
	EventID string `json:"event_id"`
}

type creativeBody struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	ImageURL        string     `json:"image_url"`
	TargetURL       string     `json:"target_url"`
	BackgroundColor string     `json:"background_color"`
	TextColor       string     `json:"text_color"`
	Position        string     `json:"position"`
	Device          string     `json:"device"`
	CategoryIDs     []string   `json:"category_ids"`
	ProviderID      string     `json:"provider_id"`
	Status          string     `json:"status"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	Priority        int        `json:"priority"`
	DisplayPolicy   string     `json:"display_policy"`
	UTMSource       string     `json:"utm_source"`
	UTMMedium       string     `json:"utm_medium"`
	UTMCampaign     string     `json:"utm_campaign"`
	UTMTerm         string     `json:"utm_term"`
	UTMContent      string     `json:"utm_content"`
}

func (b creativeBody) creative() creative.Creative {
	return creative.Creative{
		ID:              b.ID,
		Title:           b.Title,
		ImageURL:        b.ImageURL,
		TargetURL:       b.TargetURL,
		BackgroundColor: b.BackgroundColor,
		TextColor:       b.TextColor,
		SlotPosition:    creative.Position(b.Position),
		DeviceTarget:    creative.Device(b.Device),
		CategoryIDs:     b.CategoryIDs,
		ProviderID:      b.ProviderID,
		Status:          creative.Status(b.Status),
		StartsAt:        b.StartsAt,
		EndsAt:          b.EndsAt,
		Priority:        b.Priority,
		DisplayPolicy:   creative.DisplayPolicy(b.DisplayPolicy),
		Attribution: creative.Attribution{
			Source:   b.UTMSource,
			Medium:   b.UTMMedium,
			Campaign: b.UTMCampaign,
			Term:     b.UTMTerm,
			Content:  b.UTMContent,
		},
	}
}

func (s *Server) handleSlotRequest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	position := query.Get("position")
	if position == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "position is required"})

		return
	}

	device := query.Get("device")
	if device == "" {
		device = string(creative.DeviceAll)
	}

	limit := 1
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})

			return
		}
		limit = n
	}

	req := eligibility.Request{
		Position:   creative.Position(position),
		Device:     creative.Device(device),
		CategoryID: query.Get("category_id"),
		ProviderID: query.Get("provider_id"),
		Limit:      limit,
	}

	visitor := ensureVisitor(w, r)

	picked := s.app.SelectCreatives(r.Context(), req, visitor, time.Now())

	response := make([]creativeResponse, 0, len(picked))
	for _, c := range picked {
		response = append(response, creativeResponse{
			ID:              c.ID,
			Title:           c.Title,
			ImageURL:        c.ImageURL,
			TargetURL:       c.TargetURL,
			BackgroundColor: c.BackgroundColor,
			TextColor:       c.TextColor,
			Priority:        c.Priority,
		})
	}

	if s.rotationIntervalMS > 0 {
		w.Header().Set("X-Rotation-Interval-MS", strconv.Itoa(s.rotationIntervalMS))
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleImpression(w http.ResponseWriter, r *http.Request) {
	eventID, ok := extractEventID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "event_id is required"})

		return
	}

	count, err := s.app.RecordImpression(r.Context(), chi.URLParam(r, "id"), eventID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "creative not found"})

		return
	}

	if err != nil {
		// Telemetry failure is logged upstream and absorbed here.
		writeJSON(w, http.StatusOK, impressionResponse{Status: "accepted"})

		return
	}

	writeJSON(w, http.StatusOK, impressionResponse{Status: "ok", ImpressionsCount: count})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	eventID, ok := extractEventID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "event_id is required"})

		return
	}

	redirect, _, err := s.app.RecordClick(r.Context(), chi.URLParam(r, "id"), eventID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "creative not found"})

		return
	}

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "cannot resolve creative"})

		return
	}

	writeJSON(w, http.StatusOK, clickResponse{Status: "ok", RedirectURL: redirect})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body creativeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})

		return
	}

	id, err := s.app.CreateCreative(r.Context(), body.creative())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, idResponse{ID: id})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body creativeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})

		return
	}

	c := body.creative()
	c.ID = chi.URLParam(r, "id")

	err := s.app.UpdateCreative(r.Context(), c)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "creative not found"})

		return
	}

	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "creative updated"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, s.app.PauseCreative, "creative paused")
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.setStatus(w, r, s.app.ResumeCreative, "creative resumed")
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error, message string) {
	err := op(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "creative not found"})

		return
	}

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "cannot update status"})

		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: message})
}

// extractEventID reads the idempotency key from the header or the body.
func extractEventID(r *http.Request) (string, bool) {
	if id := r.Header.Get(eventIDHeader); id != "" {
		return id, true
	}

	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", false
	}

	return body.EventID, body.EventID != ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
