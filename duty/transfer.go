package duty

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/pyama86/dispatchd/presentation/messages"
)

// Transfer は当番の受諾・譲渡・辞退と管理者による再割り当てを扱う
type Transfer struct {
	svc       *Service
	publisher notifier.Publisher
}

func NewTransfer(svc *Service, publisher notifier.Publisher) *Transfer {
	return &Transfer{svc: svc, publisher: publisher}
}

func (t *Transfer) Open(ctx context.Context, dutyID, actorID int64) (*entity.Duty, error) {
	d, err := t.svc.repo.FindDuty(ctx, dutyID)
	if err != nil {
		return nil, err
	}
	if d.UserID != actorID {
		return nil, entity.Forbidden("only the duty holder can open the duty")
	}
	if d.IsOpened {
		return d, nil
	}
	opened, err := t.svc.repo.OpenDuty(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to open duty %d: %w", d.ID, err)
	}
	if !opened {
		// 強制オープンが先に入った
		return t.svc.repo.FindDuty(ctx, d.ID)
	}
	d.IsOpened = true
	now := t.svc.Now()
	action := &entity.DutyAction{
		DutyID:     d.ID,
		UserID:     actorID,
		ActionType: entity.DutyActionAcceptance,
		Reason:     entity.DefaultActionReason,
		CreatedAt:  now,
	}
	action.Resolve(actorID, now)
	if err := t.svc.repo.CreateDutyAction(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to record duty acceptance: %w", err)
	}
	return d, nil
}

// Transfer は newUserID が 0 のとき辞退として扱い、当番自体は変更しない
func (t *Transfer) Transfer(ctx context.Context, dutyID, actorID, newUserID int64, reason string) (*entity.Duty, *entity.DutyAction, error) {
	d, err := t.svc.repo.FindDuty(ctx, dutyID)
	if err != nil {
		return nil, nil, err
	}
	if d.UserID != actorID {
		return nil, nil, entity.Forbidden("only the duty holder can transfer the duty")
	}
	if strings.TrimSpace(reason) == "" {
		reason = entity.DefaultActionReason
	}
	if newUserID == 0 {
		action, err := t.refuse(ctx, d, actorID, reason)
		return d, action, err
	}

	newUser, err := t.svc.repo.UserByID(ctx, newUserID)
	if err != nil {
		return nil, nil, entity.NewValidationError("user_id", "user does not exist")
	}
	action := &entity.DutyAction{
		DutyID:     d.ID,
		UserID:     actorID,
		ActionType: entity.DutyActionTransfer,
		Reason:     reason,
		NewUserID:  newUser.ID,
		CreatedAt:  t.svc.Now(),
	}
	if err := t.svc.repo.CreateDutyAction(ctx, action); err != nil {
		return nil, nil, fmt.Errorf("failed to record duty transfer: %w", err)
	}
	d.Reassign(newUser.ID)
	if err := t.svc.repo.SaveDuty(ctx, d); err != nil {
		return nil, nil, fmt.Errorf("failed to transfer duty %d: %w", d.ID, err)
	}

	from := t.svc.userName(ctx, actorID)
	role := t.svc.roleName(ctx, d.RoleID)
	title, text := messages.DutyTransferredToYou(from)
	events := []notifier.Event{notifier.NewEvent(title, text, newUser.ID).WithDutyAction(action.ID)}
	for _, p := range repository.DutyPointsByRole(ctx, t.svc.repo, d.RoleID) {
		title, text := messages.DutyTransferred(from, newUser.DisplayName(), role, p.Name, reason)
		events = append(events, notifier.NewEvent(title, text, repository.PointAdminIDs(ctx, t.svc.repo, p)...).WithDutyAction(action.ID))
	}
	t.publisher.Dispatch(ctx, events...)
	return d, action, nil
}

func (t *Transfer) refuse(ctx context.Context, d *entity.Duty, actorID int64, reason string) (*entity.DutyAction, error) {
	action := &entity.DutyAction{
		DutyID:     d.ID,
		UserID:     actorID,
		ActionType: entity.DutyActionRefusal,
		Reason:     reason,
		CreatedAt:  t.svc.Now(),
	}
	if err := t.svc.repo.CreateDutyAction(ctx, action); err != nil {
		return nil, fmt.Errorf("failed to record duty refusal: %w", err)
	}
	user := t.svc.userName(ctx, actorID)
	role := t.svc.roleName(ctx, d.RoleID)
	var events []notifier.Event
	for _, p := range repository.DutyPointsByRole(ctx, t.svc.repo, d.RoleID) {
		title, text := messages.DutyRefused(user, role, p.Name, reason)
		events = append(events, notifier.NewEvent(title, text, repository.PointAdminIDs(ctx, t.svc.repo, p)...).WithDutyAction(action.ID))
	}
	t.publisher.Enqueue(events...)
	return action, nil
}

// ReassignByNotification は DutyAction を参照する通知から管理者が担当者を差し替える
func (t *Transfer) ReassignByNotification(ctx context.Context, actorID, notificationID, newUserID int64) (*entity.Duty, error) {
	n, err := t.svc.repo.FindNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != actorID {
		return nil, entity.NotFound("notification", notificationID)
	}
	if n.DutyActionID == 0 {
		return nil, entity.NewValidationError("notification_id", "notification is not related to a duty action")
	}
	action, err := t.svc.repo.FindDutyAction(ctx, n.DutyActionID)
	if err != nil {
		return nil, err
	}
	d, err := t.svc.repo.FindDuty(ctx, action.DutyID)
	if err != nil {
		return nil, err
	}
	if !t.canReassign(ctx, actorID, d.RoleID) {
		return nil, entity.Forbidden("only an admin can reassign the duty")
	}
	if newUserID == 0 {
		return nil, entity.NewValidationError("user_id", "user_id is required")
	}
	newUser, err := t.svc.repo.UserByID(ctx, newUserID)
	if err != nil {
		return nil, err
	}

	oldUserID := d.UserID
	d.Reassign(newUser.ID)
	if err := t.svc.repo.SaveDuty(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to reassign duty %d: %w", d.ID, err)
	}

	now := t.svc.Now()
	unresolved, err := t.svc.repo.ListDutyActions(ctx, d.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list duty actions: %w", err)
	}
	for i := range unresolved {
		a := unresolved[i]
		a.Resolve(actorID, now)
		if err := t.svc.repo.SaveDutyAction(ctx, &a); err != nil {
			return nil, fmt.Errorf("failed to resolve duty action %d: %w", a.ID, err)
		}
	}

	admin := t.svc.userName(ctx, actorID)
	role := t.svc.roleName(ctx, d.RoleID)
	title, text := messages.DutyReassignedToYou(admin, role, d.Date)
	events := []notifier.Event{notifier.NewEvent(title, text, newUser.ID)}
	if oldUserID != newUser.ID {
		title, text := messages.DutyReassignedFromYou(admin, role, d.Date)
		events = append(events, notifier.NewEvent(title, text, oldUserID))
	}
	t.publisher.Dispatch(ctx, events...)
	return d, nil
}

func (t *Transfer) canReassign(ctx context.Context, actorID, roleID int64) bool {
	if u, err := t.svc.repo.UserByID(ctx, actorID); err == nil && u.IsDispatchAdmin {
		return true
	}
	for _, p := range repository.DutyPointsByRole(ctx, t.svc.repo, roleID) {
		if p.IsAdmin(actorID) {
			return true
		}
	}
	return false
}
