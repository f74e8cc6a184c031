package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
)

// my_duties は開始30分前から自分の当番として返す
const myDutiesStartOffset = 30 * time.Minute

type transferDutyRequest struct {
	UserID     int64  `json:"user_id" validate:"gte=0"`
	UserReason string `json:"user_reason"`
}

type reassignRequest struct {
	NotificationID int64 `json:"notification_id" validate:"required"`
	UserID         int64 `json:"user_id" validate:"required"`
}

type transferDutyResponse struct {
	Duty   *entity.Duty       `json:"duty"`
	Action *entity.DutyAction `json:"action"`
}

func (s *Server) listDuties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	roleID, err := queryInt64(r, "role")
	if err != nil {
		writeError(w, err)
		return
	}
	f := repository.DutyFilter{RoleID: roleID}
	if v := q.Get("date"); v != "" {
		d, err := s.app.Duties.Calendar().ParseDate(v)
		if err != nil {
			writeError(w, entity.NewValidationError("date", "datetime"))
			return
		}
		f.FromDate = d.Format(entity.DateLayout)
		f.ToDate = f.FromDate
	}
	if v := q.Get("is_opened"); v != "" {
		opened, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, entity.NewValidationError("is_opened", "must be a boolean"))
			return
		}
		f.IsOpened = &opened
	}
	duties, err := s.app.Duties.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if duties == nil {
		duties = []entity.Duty{}
	}
	writeJSON(w, http.StatusOK, duties)
}

func (s *Server) myDuties(w http.ResponseWriter, r *http.Request) {
	duties, err := s.app.Duties.CurrentDuties(r.Context(), s.app.Duties.Now(), currentUser(r).ID, 0, myDutiesStartOffset)
	if err != nil {
		writeError(w, err)
		return
	}
	if duties == nil {
		duties = []entity.Duty{}
	}
	writeJSON(w, http.StatusOK, duties)
}

func (s *Server) getDuty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.app.Duties.Find(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) openDuty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.app.Transfer.Open(r.Context(), id, currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) transferDuty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req transferDutyRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, action, err := s.app.Transfer.Transfer(r.Context(), id, currentUser(r).ID, req.UserID, req.UserReason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transferDutyResponse{Duty: d, Action: action})
}

func (s *Server) reassignByNotification(w http.ResponseWriter, r *http.Request) {
	var req reassignRequest
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := s.app.Transfer.ReassignByNotification(r.Context(), currentUser(r).ID, req.NotificationID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
