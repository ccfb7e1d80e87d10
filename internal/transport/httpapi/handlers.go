package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"reorder/internal/recurring"
)

const maxBodyBytes = 1 << 20

type createOrderRequest struct {
	Name      string           `json:"name"`
	Items     []recurring.Item `json:"items"`
	Frequency string           `json:"frequency"`
	StartDate string           `json:"startDate,omitempty"`
}

type updateOrderRequest struct {
	Name              *string           `json:"name,omitempty"`
	Items             *[]recurring.Item `json:"items,omitempty"`
	Frequency         *string           `json:"frequency,omitempty"`
	NextExecutionDate *string           `json:"nextExecutionDate,omitempty"`
	IsActive          *bool             `json:"isActive,omitempty"`
}

type sessionResponse struct {
	ClientID string `json:"clientId"`
	Created  bool   `json:"created"`
}

type dueCountResponse struct {
	ClientID string `json:"clientId"`
	Due      int    `json:"due"`
}

// decodeBody reads a single JSON object into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, time.Local)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	_, created, err := s.sessions.Activate(r.Context(), clientID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sessionResponse{ClientID: strings.TrimSpace(clientID), Created: created})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Deactivate(r.Context(), chi.URLParam(r, "clientID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	orders, err := d.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if orders == nil {
		orders = []recurring.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	freq, err := recurring.ParseFrequency(req.Frequency)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	in := recurring.CreateInput{Name: req.Name, Items: req.Items, Frequency: freq}
	if strings.TrimSpace(req.StartDate) != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDate, "startDate must be RFC3339 or YYYY-MM-DD")
			return
		}
		in.StartDate = start
	}

	o, err := d.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	o, err := d.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	var req updateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := recurring.Patch{Name: req.Name, IsActive: req.IsActive}
	if req.Items != nil {
		p.Items = *req.Items
		if p.Items == nil {
			p.Items = []recurring.Item{}
		}
	}
	if req.Frequency != nil {
		f, err := recurring.ParseFrequency(*req.Frequency)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
			return
		}
		p.Frequency = &f
	}
	if req.NextExecutionDate != nil {
		t, err := parseDate(*req.NextExecutionDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidDate, "nextExecutionDate must be RFC3339 or YYYY-MM-DD")
			return
		}
		p.NextExecutionDate = &t
	}

	o, err := d.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	if err := d.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleOrder(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	o, err := d.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	out, err := d.ExecuteNow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	rep, err := d.ScanNow(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDueCount(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	n, err := d.CountDue(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dueCountResponse{ClientID: d.ClientID(), Due: n})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	d, ok := s.driver(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.carts.For(d.ClientID()).Groups())
}
