package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/model"
	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// SQLite は書き込みを1本に絞る
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func fromNullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func markerColumns(m entity.DutyMarker) (string, string, error) {
	switch m {
	case entity.MarkerComing:
		return "coming_notification_id", "coming_notified_at", nil
	case entity.MarkerReminder:
		return "reminder_notification_id", "reminded_at", nil
	case entity.MarkerNeedToOpen:
		return "need_to_open_notification_id", "need_to_open_at", nil
	}
	return "", "", fmt.Errorf("unknown duty marker %q", m)
}

const dutyColumns = `id, role_id, start_date, user_id, start_at, end_at, is_opened, is_forced_opened,
	coming_notification_id, coming_notified_at, reminder_notification_id, reminded_at,
	need_to_open_notification_id, need_to_open_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDuty(row rowScanner) (*entity.Duty, error) {
	var (
		d                                      entity.Duty
		start, end                             int64
		comingID, comingAt, reminderID         sql.NullInt64
		remindedAt, needToOpenID, needToOpenAt sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.RoleID, &d.Date, &d.UserID, &start, &end, &d.IsOpened, &d.IsForcedOpened,
		&comingID, &comingAt, &reminderID, &remindedAt, &needToOpenID, &needToOpenAt)
	if err != nil {
		return nil, err
	}
	d.Start = time.UnixMilli(start)
	d.End = time.UnixMilli(end)
	d.ComingNotificationID, d.ComingNotifiedAt = fromNullInt(comingID), fromNullMillis(comingAt)
	d.ReminderNotificationID, d.RemindedAt = fromNullInt(reminderID), fromNullMillis(remindedAt)
	d.NeedToOpenNotificationID, d.NeedToOpenAt = fromNullInt(needToOpenID), fromNullMillis(needToOpenAt)
	return &d, nil
}

func (r *SQLiteRepository) CreateDutyIfAbsent(ctx context.Context, d *entity.Duty) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO duties(role_id, start_date, user_id, start_at, end_at, is_opened, is_forced_opened)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(role_id, start_date) DO NOTHING`,
		d.RoleID, d.Date, d.UserID, toMillis(d.Start), toMillis(d.End), d.IsOpened, d.IsForcedOpened,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert duty: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		existing, err := scanDuty(r.db.QueryRowContext(ctx,
			`SELECT `+dutyColumns+` FROM duties WHERE role_id = ? AND start_date = ?`, d.RoleID, d.Date))
		if err != nil {
			return false, fmt.Errorf("failed to load existing duty: %w", err)
		}
		*d = *existing
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	d.ID = id
	return true, nil
}

func (r *SQLiteRepository) SaveDuty(ctx context.Context, d *entity.Duty) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE duties SET role_id = ?, start_date = ?, user_id = ?, start_at = ?, end_at = ?,
		 is_opened = ?, is_forced_opened = ?,
		 coming_notification_id = ?, coming_notified_at = ?,
		 reminder_notification_id = ?, reminded_at = ?,
		 need_to_open_notification_id = ?, need_to_open_at = ?
		 WHERE id = ?`,
		d.RoleID, d.Date, d.UserID, toMillis(d.Start), toMillis(d.End), d.IsOpened, d.IsForcedOpened,
		nullInt(d.ComingNotificationID), nullMillis(d.ComingNotifiedAt),
		nullInt(d.ReminderNotificationID), nullMillis(d.RemindedAt),
		nullInt(d.NeedToOpenNotificationID), nullMillis(d.NeedToOpenAt),
		d.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return entity.ErrConflict
		}
		return fmt.Errorf("failed to update duty: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.NotFound("duty", d.ID)
	}
	return nil
}

func (r *SQLiteRepository) FindDuty(ctx context.Context, id int64) (*entity.Duty, error) {
	d, err := scanDuty(r.db.QueryRowContext(ctx, `SELECT `+dutyColumns+` FROM duties WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFound("duty", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duty: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) ListDuties(ctx context.Context, f DutyFilter) ([]entity.Duty, error) {
	var (
		where []string
		args  []any
	)
	if f.RoleID != 0 {
		where = append(where, "role_id = ?")
		args = append(args, f.RoleID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.FromDate != "" {
		where = append(where, "start_date >= ?")
		args = append(args, f.FromDate)
	}
	if f.ToDate != "" {
		where = append(where, "start_date <= ?")
		args = append(args, f.ToDate)
	}
	if !f.StartBefore.IsZero() {
		where = append(where, "start_at <= ?")
		args = append(args, toMillis(f.StartBefore))
	}
	if !f.EndAfter.IsZero() {
		where = append(where, "end_at > ?")
		args = append(args, toMillis(f.EndAfter))
	}
	if f.IsOpened != nil {
		where = append(where, "is_opened = ?")
		args = append(args, *f.IsOpened)
	}
	q := `SELECT ` + dutyColumns + ` FROM duties`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_date, role_id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list duties: %w", err)
	}
	defer rows.Close()
	var duties []entity.Duty
	for rows.Next() {
		d, err := scanDuty(rows)
		if err != nil {
			return nil, err
		}
		duties = append(duties, *d)
	}
	return duties, rows.Err()
}

func (r *SQLiteRepository) DeleteDuties(ctx context.Context, roleID int64, fromDate, toDate string) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM duties WHERE role_id = ? AND start_date >= ? AND start_date <= ?`, roleID, fromDate, toDate)
	if err != nil {
		return 0, fmt.Errorf("failed to delete duties: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) LatchDutyMarker(ctx context.Context, dutyID int64, marker entity.DutyMarker, notificationID int64, at time.Time, forceOpen bool) (bool, error) {
	idCol, atCol, err := markerColumns(marker)
	if err != nil {
		return false, err
	}
	set := fmt.Sprintf("%s = ?, %s = ?", idCol, atCol)
	if forceOpen {
		set += ", is_opened = 1, is_forced_opened = 1"
	}
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE duties SET %s WHERE id = ? AND is_opened = 0 AND %s IS NULL", set, idCol),
		notificationID, toMillis(at), dutyID)
	if err != nil {
		return false, fmt.Errorf("failed to latch duty marker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := r.FindDuty(ctx, dutyID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *SQLiteRepository) OpenDuty(ctx context.Context, dutyID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE duties SET is_opened = 1 WHERE id = ? AND is_opened = 0`, dutyID)
	if err != nil {
		return false, fmt.Errorf("failed to open duty: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := r.FindDuty(ctx, dutyID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

const dutyActionColumns = `id, duty_id, user_id, action_type, reason, new_user_id, created_at, is_resolved, resolved_by, resolved_at`

func scanDutyAction(row rowScanner) (*entity.DutyAction, error) {
	var (
		a          entity.DutyAction
		createdAt  int64
		resolvedAt sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.DutyID, &a.UserID, &a.ActionType, &a.Reason, &a.NewUserID, &createdAt,
		&a.IsResolved, &a.ResolvedBy, &resolvedAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.UnixMilli(createdAt)
	a.ResolvedAt = fromNullMillis(resolvedAt)
	return &a, nil
}

func (r *SQLiteRepository) CreateDutyAction(ctx context.Context, a *entity.DutyAction) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO duty_actions(duty_id, user_id, action_type, reason, new_user_id, created_at, is_resolved, resolved_by, resolved_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		a.DutyID, a.UserID, a.ActionType, a.Reason, a.NewUserID, toMillis(a.CreatedAt), a.IsResolved, a.ResolvedBy, nullMillis(a.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert duty action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

func (r *SQLiteRepository) SaveDutyAction(ctx context.Context, a *entity.DutyAction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE duty_actions SET is_resolved = ?, resolved_by = ?, resolved_at = ? WHERE id = ?`,
		a.IsResolved, a.ResolvedBy, nullMillis(a.ResolvedAt), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update duty action: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.NotFound("duty action", a.ID)
	}
	return nil
}

func (r *SQLiteRepository) FindDutyAction(ctx context.Context, id int64) (*entity.DutyAction, error) {
	a, err := scanDutyAction(r.db.QueryRowContext(ctx, `SELECT `+dutyActionColumns+` FROM duty_actions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFound("duty action", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duty action: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListDutyActions(ctx context.Context, dutyID int64, unresolvedOnly bool) ([]entity.DutyAction, error) {
	q := `SELECT ` + dutyActionColumns + ` FROM duty_actions WHERE duty_id = ?`
	if unresolvedOnly {
		q += " AND is_resolved = 0"
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY id", dutyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list duty actions: %w", err)
	}
	defer rows.Close()
	var actions []entity.DutyAction
	for rows.Next() {
		a, err := scanDutyAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

const incidentColumns = `id, name, description, status, level, is_critical, author_id, responsible_user_id, point_id, created_at`

func scanIncident(row rowScanner) (*entity.Incident, error) {
	var (
		i         entity.Incident
		createdAt int64
	)
	err := row.Scan(&i.ID, &i.Name, &i.Description, &i.Status, &i.Level, &i.IsCritical, &i.AuthorID,
		&i.ResponsibleUserID, &i.PointID, &createdAt)
	if err != nil {
		return nil, err
	}
	i.CreatedAt = time.UnixMilli(createdAt)
	return &i, nil
}

func (r *SQLiteRepository) CreateIncident(ctx context.Context, i *entity.Incident) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incidents(name, description, status, level, is_critical, author_id, responsible_user_id, point_id, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		i.Name, i.Description, i.Status, i.Level, i.IsCritical, i.AuthorID, i.ResponsibleUserID, i.PointID, toMillis(i.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	i.ID = id
	return nil
}

func (r *SQLiteRepository) SaveIncident(ctx context.Context, i *entity.Incident) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE incidents SET name = ?, description = ?, status = ?, level = ?, is_critical = ?,
		 responsible_user_id = ?, point_id = ? WHERE id = ?`,
		i.Name, i.Description, i.Status, i.Level, i.IsCritical, i.ResponsibleUserID, i.PointID, i.ID)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.NotFound("incident", i.ID)
	}
	return nil
}

func (r *SQLiteRepository) FindIncident(ctx context.Context, id int64) (*entity.Incident, error) {
	i, err := scanIncident(r.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFound("incident", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find incident: %w", err)
	}
	return i, nil
}

func (r *SQLiteRepository) ListIncidents(ctx context.Context, f IncidentFilter) ([]entity.Incident, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, toMillis(f.To))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.ResponsibleUserID != 0 {
		where = append(where, "responsible_user_id = ?")
		args = append(args, f.ResponsibleUserID)
	}
	if f.PointID != 0 {
		where = append(where, "point_id = ?")
		args = append(args, f.PointID)
	}
	if f.AuthorID != 0 {
		where = append(where, "author_id = ?")
		args = append(args, f.AuthorID)
	}
	q := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()
	var incidents []entity.Incident
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, *i)
	}
	return incidents, rows.Err()
}

func (r *SQLiteRepository) AddIncidentMessage(ctx context.Context, m *entity.IncidentMessage) error {
	rec := model.NewIncidentMessage(m)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO incident_messages(incident_id, user_id, message_type, text, url, created_at) VALUES(?,?,?,?,?,?)`,
		rec.IncidentID, rec.UserID, rec.Kind, rec.Text, rec.URL, toMillis(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert incident message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

func (r *SQLiteRepository) ListIncidentMessages(ctx context.Context, incidentID int64) ([]entity.IncidentMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, incident_id, user_id, message_type, text, url, created_at FROM incident_messages
		 WHERE incident_id = ? ORDER BY id DESC`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident messages: %w", err)
	}
	defer rows.Close()
	var messages []entity.IncidentMessage
	for rows.Next() {
		var (
			rec       model.IncidentMessage
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.IncidentID, &rec.UserID, &rec.Kind, &rec.Text, &rec.URL, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		m, err := rec.Entity()
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *SQLiteRepository) ReserveNotificationID(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO notification_ids DEFAULT VALUES`)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve notification id: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n *entity.Notification) error {
	if n.ID == 0 {
		id, err := r.ReserveNotificationID(ctx)
		if err != nil {
			return err
		}
		n.ID = id
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications(id, user_id, title, text, source, is_seen, created_at, duty_action_id)
		 VALUES(?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Title, n.Text, n.Source, n.IsSeen, toMillis(n.CreatedAt), n.DutyActionID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return entity.ErrConflict
		}
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

const notificationColumns = `id, user_id, title, text, source, is_seen, created_at, duty_action_id`

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var (
		n         entity.Notification
		createdAt int64
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Text, &n.Source, &n.IsSeen, &createdAt, &n.DutyActionID); err != nil {
		return nil, err
	}
	n.CreatedAt = time.UnixMilli(createdAt)
	return &n, nil
}

func (r *SQLiteRepository) FindNotification(ctx context.Context, id int64) (*entity.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFound("notification", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID int64) ([]entity.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()
	var notifications []entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

func (r *SQLiteRepository) MarkNotificationSeen(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_seen = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification seen: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.NotFound("notification", id)
	}
	return nil
}
