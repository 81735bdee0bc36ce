package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/model"
	"github.com/Mastercard-Code-For-Change-2-0/Team-23/internal/repository"
)

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

type eventResponse struct {
	ID          string `json:"id"`
	AdminID     string `json:"adminId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	CreatedAt   string `json:"createdAt"`
}

func mapEventResponse(event model.Event) eventResponse {
	return eventResponse{
		ID:          event.ID,
		AdminID:     event.AdminID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		StartDate:   event.StartDate.UTC().Format(time.RFC3339),
		EndDate:     event.EndDate.UTC().Format(time.RFC3339),
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context())
	if err != nil {
		s.log.WithError(err).Error("list events failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]eventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, mapEventResponse(event))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseEventRequest(w http.ResponseWriter, r *http.Request) (model.Event, bool) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return model.Event{}, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.StartDate == "" || req.EndDate == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return model.Event{}, false
	}
	start, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_date")
		return model.Event{}, false
	}
	end, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_date")
		return model.Event{}, false
	}

	return model.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartDate:   start,
		EndDate:     end,
	}, true
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := s.parseEventRequest(w, r)
	if !ok {
		return
	}
	event.AdminID = identityFromContext(r.Context()).ID

	created, err := s.store.CreateEvent(r.Context(), event)
	if err != nil {
		s.log.WithError(err).Error("create event failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapEventResponse(created))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := s.parseEventRequest(w, r)
	if !ok {
		return
	}
	event.ID = chi.URLParam(r, "eventID")

	if err := s.store.UpdateEvent(r.Context(), event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event_not_found")
			return
		}
		s.log.WithError(err).Error("update event failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteEvent(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event_not_found")
			return
		}
		s.log.WithError(err).Error("delete event failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type applicationRequest struct {
	StudentName  string `json:"studentName"`
	PhoneNumber  string `json:"phoneNumber"`
	College      string `json:"college"`
	YearOfStudy  string `json:"yearOfStudy"`
	FieldOfStudy string `json:"fieldOfStudy"`
}

type applicationResponse struct {
	ID           string `json:"id"`
	EventID      string `json:"eventId"`
	StudentName  string `json:"studentName"`
	PhoneNumber  string `json:"phoneNumber"`
	College      string `json:"college"`
	YearOfStudy  string `json:"yearOfStudy"`
	FieldOfStudy string `json:"fieldOfStudy"`
	Status       string `json:"status"`
	AppliedAt    string `json:"appliedAt"`
}

func mapApplicationResponse(app model.EventApplication) applicationResponse {
	return applicationResponse{
		ID:           app.ID,
		EventID:      app.EventID,
		StudentName:  app.StudentName,
		PhoneNumber:  app.PhoneNumber,
		College:      app.College,
		YearOfStudy:  app.YearOfStudy,
		FieldOfStudy: app.FieldOfStudy,
		Status:       app.Status,
		AppliedAt:    app.AppliedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	for _, field := range []string{req.StudentName, req.PhoneNumber, req.College, req.YearOfStudy, req.FieldOfStudy} {
		if strings.TrimSpace(field) == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}
	}

	eventID := chi.URLParam(r, "eventID")
	if _, err := s.store.GetEventByID(r.Context(), eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event_not_found")
			return
		}
		s.log.WithError(err).Error("event lookup failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	app, err := s.store.CreateApplication(r.Context(), model.EventApplication{
		EventID:      eventID,
		IdentityID:   identityFromContext(r.Context()).ID,
		StudentName:  strings.TrimSpace(req.StudentName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		College:      strings.TrimSpace(req.College),
		YearOfStudy:  req.YearOfStudy,
		FieldOfStudy: req.FieldOfStudy,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusConflict, "already_applied")
			return
		}
		s.log.WithError(err).Error("create application failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapApplicationResponse(app))
}

func (s *Server) handleListEventApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.store.ListApplicationsByEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		s.log.WithError(err).Error("list applications failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, mapApplicationResponse(app))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.store.ListApplicationsByIdentity(r.Context(), identityFromContext(r.Context()).ID)
	if err != nil {
		s.log.WithError(err).Error("list applications failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		resp = append(resp, mapApplicationResponse(app))
	}
	writeJSON(w, http.StatusOK, resp)
}

type patchApplicationRequest struct {
	Status string `json:"status"`
}

func (s *Server) handlePatchApplication(w http.ResponseWriter, r *http.Request) {
	var req patchApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !model.IsValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	if err := s.store.UpdateApplicationStatus(r.Context(), chi.URLParam(r, "applicationID"), req.Status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "application_not_found")
			return
		}
		s.log.WithError(err).Error("update application failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}
