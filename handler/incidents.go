package handler

import (
	"net/http"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/incident"
)

type incidentResponse struct {
	entity.Incident
	DisplayStatus string `json:"display_status"`
}

func newIncidentResponse(i *entity.Incident) incidentResponse {
	return incidentResponse{Incident: *i, DisplayStatus: i.DisplayStatus()}
}

func newIncidentResponses(incidents []entity.Incident) []incidentResponse {
	res := make([]incidentResponse, 0, len(incidents))
	for i := range incidents {
		res = append(res, newIncidentResponse(&incidents[i]))
	}
	return res
}

type createIncidentRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	PointID     int64  `json:"point_id" validate:"required"`
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.app.Incidents.List(r.Context(), repository.IncidentFilter{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncidentResponses(incidents))
}

func (s *Server) myIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.app.Incidents.VisibleTo(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncidentResponses(incidents))
}

func (s *Server) createIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	inc, err := s.app.Incidents.Create(r.Context(), currentUser(r).ID, incident.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		PointID:     req.PointID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newIncidentResponse(inc))
}

func (s *Server) getIncident(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	inc, err := s.app.Incidents.Find(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncidentResponse(inc))
}

func (s *Server) availableActions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	actions, err := s.app.Incidents.AvailableActions(r.Context(), id, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req changeStatusRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	inc, err := s.app.Incidents.ChangeStatus(r.Context(), id, currentUser(r).ID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncidentResponse(inc))
}

func (s *Server) escalate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	inc, err := s.app.Incidents.Escalate(r.Context(), id, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newIncidentResponse(inc))
}

// statisticsRequest は GET のクエリとエクスポートの JSON の両方で使う
type statisticsRequest struct {
	StartDate         string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate           string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Status            string `json:"status" validate:"omitempty,oneof=opened closed force_closed waiting_to_be_accepted"`
	ResponsibleUserID int64  `json:"responsible_user_id" validate:"gte=0"`
	PointID           int64  `json:"point_id" validate:"gte=0"`
	AuthorID          int64  `json:"author_id" validate:"gte=0"`
}

func (s *Server) statisticsQuery(r *http.Request) (statisticsRequest, error) {
	q := r.URL.Query()
	req := statisticsRequest{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Status:    q.Get("status"),
	}
	var err error
	if req.ResponsibleUserID, err = queryInt64(r, "responsible_user_id"); err != nil {
		return req, err
	}
	if req.PointID, err = queryInt64(r, "point_id"); err != nil {
		return req, err
	}
	if req.AuthorID, err = queryInt64(r, "author_id"); err != nil {
		return req, err
	}
	if err := validate.Struct(req); err != nil {
		return req, validationFailure(err)
	}
	return req, nil
}

// filter は日付を含む範囲 [start, end] を作成日時の半開区間に直す
func (s *Server) filter(req statisticsRequest) (repository.IncidentFilter, string, error) {
	f := repository.IncidentFilter{
		Status:            entity.IncidentStatus(req.Status),
		ResponsibleUserID: req.ResponsibleUserID,
		PointID:           req.PointID,
		AuthorID:          req.AuthorID,
	}
	cal := s.app.Duties.Calendar()
	period := "all time"
	if req.StartDate != "" {
		d, err := cal.ParseDate(req.StartDate)
		if err != nil {
			return f, "", entity.NewValidationError("start_date", "datetime")
		}
		f.From = d
	}
	if req.EndDate != "" {
		d, err := cal.ParseDate(req.EndDate)
		if err != nil {
			return f, "", entity.NewValidationError("end_date", "datetime")
		}
		f.To = d.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return f, "", entity.NewValidationError("end_date", "end_date must not be before start_date")
	}
	switch {
	case req.StartDate != "" && req.EndDate != "":
		period = req.StartDate + " - " + req.EndDate
	case req.StartDate != "":
		period = "since " + req.StartDate
	case req.EndDate != "":
		period = "until " + req.EndDate
	}
	return f, period, nil
}

func (s *Server) incidentStatistics(w http.ResponseWriter, r *http.Request) {
	req, err := s.statisticsQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	f, _, err := s.filter(req)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.app.Incidents.Statistics(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type messageRequest struct {
	MessageType string `json:"message_type" validate:"required,oneof=text photo video audio"`
	Text        string `json:"text"`
	URL         string `json:"url" validate:"omitempty,url"`
}

type messageResponse struct {
	ID          int64     `json:"id"`
	IncidentID  int64     `json:"incident_id"`
	UserID      int64     `json:"user_id,omitempty"`
	IsSystem    bool      `json:"is_system"`
	MessageType string    `json:"message_type"`
	Text        string    `json:"text,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newMessageResponse(m *entity.IncidentMessage) messageResponse {
	text, url := m.Payload()
	return messageResponse{
		ID:          m.ID,
		IncidentID:  m.IncidentID,
		UserID:      m.UserID,
		IsSystem:    m.IsSystem(),
		MessageType: string(m.Kind()),
		Text:        text,
		URL:         url,
		CreatedAt:   m.CreatedAt,
	}
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := s.app.Incidents.Messages(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		res = append(res, newMessageResponse(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req messageRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	m, err := s.app.Incidents.AddMessage(r.Context(), id, currentUser(r).ID, entity.MessageKind(req.MessageType), req.Text, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMessageResponse(m))
}
