package handler

import (
	"net/http"

	"github.com/pyama86/dispatchd/domain/entity"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := s.app.Repo.ListNotifications(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if notifications == nil {
		notifications = []entity.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

// readNotification は他人の通知を存在しないものとして扱う
func (s *Server) readNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := s.app.Repo.FindNotification(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if n.UserID != currentUser(r).ID {
		writeError(w, entity.NotFound("notification", id))
		return
	}
	if err := s.app.Repo.MarkNotificationSeen(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	n.IsSeen = true
	writeJSON(w, http.StatusOK, n)
}
