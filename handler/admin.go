package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/duty"
	"github.com/pyama86/dispatchd/presentation/report"
)

type roleResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	DaysAhead int    `json:"days_ahead"`
}

type scheduleRequest struct {
	UserID    int64  `json:"user_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	DutyStep  int    `json:"duty_step" validate:"gte=0"`
	RestStep  int    `json:"rest_step" validate:"gte=0"`
}

type scheduleResponse struct {
	Created     []entity.Duty `json:"created"`
	Overwritten []entity.Duty `json:"overwritten"`
}

type clearRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type exportResponse struct {
	URL string `json:"url"`
}

func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	today := s.app.Duties.Today()
	roles := s.app.Repo.DutyRoles(r.Context())
	res := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		n, err := s.app.Duties.AssignedDaysAhead(r.Context(), today, role.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		res = append(res, roleResponse{ID: role.ID, Name: role.Name, DaysAhead: n})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) parseDates(start, end string) (time.Time, time.Time, error) {
	cal := s.app.Duties.Calendar()
	from, err := cal.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, entity.NewValidationError("start_date", "datetime")
	}
	if end == "" {
		return from, time.Time{}, nil
	}
	to, err := cal.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, entity.NewValidationError("end_date", "datetime")
	}
	return from, to, nil
}

func (s *Server) scheduleRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req scheduleRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	start, end, err := s.parseDates(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.app.Scheduler.Assign(r.Context(), duty.AssignRequest{
		RoleID:    roleID,
		UserID:    req.UserID,
		StartDate: start,
		EndDate:   end,
		DutyStep:  req.DutyStep,
		RestStep:  req.RestStep,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := scheduleResponse{Created: res.Created, Overwritten: res.Overwritten}
	if out.Created == nil {
		out.Created = []entity.Duty{}
	}
	if out.Overwritten == nil {
		out.Overwritten = []entity.Duty{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) clearRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req clearRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	start, end, err := s.parseDates(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := s.app.Scheduler.Clear(r.Context(), roleID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) roleCalendar(w http.ResponseWriter, r *http.Request) {
	roleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.app.Repo.DutyRoleByID(r.Context(), roleID); err != nil {
		writeError(w, err)
		return
	}
	today := s.app.Duties.Today()
	year, month := today.Year(), today.Month()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			writeError(w, entity.NewValidationError("year", "must be a positive integer"))
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, entity.NewValidationError("month", "must be between 1 and 12"))
			return
		}
		month = time.Month(m)
	}
	cal, err := s.app.Duties.MonthCalendar(r.Context(), year, month, roleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (s *Server) exportStatistics(w http.ResponseWriter, r *http.Request) {
	if s.app.Exporter == nil {
		writeMessage(w, http.StatusServiceUnavailable, "report export is not configured")
		return
	}
	var req statisticsRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	f, period, err := s.filter(req)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.app.Incidents.Statistics(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	url, err := s.app.Exporter.ExportReport(r.Context(), report.Title(period), report.HTML(report.Render(period, stats)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportResponse{URL: url})
}
