package incident

import (
	"context"
	"fmt"

	"github.com/pyama86/dispatchd/domain/entity"
)

func (e *Engine) AddMessage(ctx context.Context, incidentID, userID int64, kind entity.MessageKind, text, url string) (*entity.IncidentMessage, error) {
	if _, err := e.repo.FindIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	content, err := entity.NewMessageContent(kind, text, url)
	if err != nil {
		return nil, err
	}
	m := &entity.IncidentMessage{
		IncidentID: incidentID,
		UserID:     userID,
		CreatedAt:  e.duties.Now(),
		Content:    content,
	}
	if err := e.repo.AddIncidentMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to add message to incident %d: %w", incidentID, err)
	}
	return m, nil
}

// Messages は新しい順に返す
func (e *Engine) Messages(ctx context.Context, incidentID int64) ([]entity.IncidentMessage, error) {
	if _, err := e.repo.FindIncident(ctx, incidentID); err != nil {
		return nil, err
	}
	return e.repo.ListIncidentMessages(ctx, incidentID)
}
