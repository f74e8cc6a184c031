package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/guregu/dynamo/v2"
	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/model"
)

var tablePrefix = "dispatchd_"

func init() {
	if os.Getenv("DYNAMO_TABLE_PREFIX") != "" {
		tablePrefix = os.Getenv("DYNAMO_TABLE_PREFIX")
	}
}

func tableName(name string) string {
	return tablePrefix + name
}

var (
	dutiesTable           = "duties"
	dutyActionsTable      = "duty_actions"
	incidentsTable        = "incidents"
	incidentMessagesTable = "incident_messages"
	notificationsTable    = "notifications"
	sequencesTable        = "sequences"
)

func NewDynamoDBRepository() (*DynamoDBRepository, error) {
	var db *dynamo.DB
	if os.Getenv("DYNAMO_LOCAL") != "" {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}
		endpoint := "http://localhost:8000"
		if os.Getenv("DYNAMO_ENDPOINT") != "" {
			endpoint = os.Getenv("DYNAMO_ENDPOINT")
		}
		db = dynamo.New(cfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		},
		)

		err = setupDdbSchema(db)
		if err != nil {
			return nil, fmt.Errorf("failed to setup schema: %v", err)
		}
	} else {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}
		db = dynamo.New(cfg)
	}

	return &DynamoDBRepository{db: db}, nil
}

func setupDdbSchema(db *dynamo.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tables := []struct {
		name    string
		from    any
		indexes []string
	}{
		{dutiesTable, entity.Duty{}, []string{"id-index", "user_id-index"}},
		{dutyActionsTable, entity.DutyAction{}, []string{"duty_id-index"}},
		{incidentsTable, entity.Incident{}, nil},
		{incidentMessagesTable, model.IncidentMessage{}, nil},
		{notificationsTable, entity.Notification{}, []string{"user_id-index"}},
		{sequencesTable, model.Sequence{}, nil},
	}
	for _, t := range tables {
		name := tableName(t.name)
		if _, err := db.Table(name).Describe().Run(ctx); err == nil {
			continue
		}
		input := db.CreateTable(name, t.from).Provision(10, 10)
		for _, idx := range t.indexes {
			input = input.ProvisionIndex(idx, 10, 10)
		}
		if err := input.Run(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}
	return nil
}

type DynamoDBRepository struct {
	db *dynamo.DB
}

func (r *DynamoDBRepository) table(name string) dynamo.Table {
	return r.db.Table(tableName(name))
}

func (r *DynamoDBRepository) Close() error {
	return nil
}

func (r *DynamoDBRepository) nextID(ctx context.Context, name string) (int64, error) {
	var seq model.Sequence
	err := r.table(sequencesTable).Update("name", name).Add("value", 1).Value(ctx, &seq)
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence %s: %w", name, err)
	}
	return seq.Value, nil
}

func (r *DynamoDBRepository) CreateDutyIfAbsent(ctx context.Context, d *entity.Duty) (bool, error) {
	id, err := r.nextID(ctx, model.SequenceDuty)
	if err != nil {
		return false, err
	}
	d.ID = id
	err = r.table(dutiesTable).Put(d).If("attribute_not_exists($)", "date").Run(ctx)
	if err == nil {
		return true, nil
	}
	if !dynamo.IsCondCheckFailed(err) {
		return false, fmt.Errorf("failed to put duty: %w", err)
	}
	var existing entity.Duty
	if err := r.table(dutiesTable).Get("role_id", d.RoleID).Range("date", dynamo.Equal, d.Date).One(ctx, &existing); err != nil {
		return false, fmt.Errorf("failed to load existing duty: %w", err)
	}
	*d = existing
	return false, nil
}

func (r *DynamoDBRepository) SaveDuty(ctx context.Context, d *entity.Duty) error {
	err := r.table(dutiesTable).Put(d).If("$ = ?", "id", d.ID).Run(ctx)
	if dynamo.IsCondCheckFailed(err) {
		return entity.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to put duty: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) FindDuty(ctx context.Context, id int64) (*entity.Duty, error) {
	var d entity.Duty
	err := r.table(dutiesTable).Get("id", id).Index("id-index").One(ctx, &d)
	if errors.Is(err, dynamo.ErrNotFound) {
		return nil, entity.NotFound("duty", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duty: %w", err)
	}
	return &d, nil
}

// ListDuties はキーと日付で絞り込んだ後、残りの条件をメモリ上で適用する
func (r *DynamoDBRepository) ListDuties(ctx context.Context, f DutyFilter) ([]entity.Duty, error) {
	var (
		duties []entity.Duty
		err    error
	)
	switch {
	case f.RoleID != 0:
		q := r.table(dutiesTable).Get("role_id", f.RoleID)
		switch {
		case f.FromDate != "" && f.ToDate != "":
			q = q.Range("date", dynamo.Between, f.FromDate, f.ToDate)
		case f.FromDate != "":
			q = q.Range("date", dynamo.GreaterOrEqual, f.FromDate)
		case f.ToDate != "":
			q = q.Range("date", dynamo.LessOrEqual, f.ToDate)
		}
		err = q.All(ctx, &duties)
	case f.UserID != 0:
		err = r.table(dutiesTable).Get("user_id", f.UserID).Index("user_id-index").All(ctx, &duties)
	default:
		s := r.table(dutiesTable).Scan()
		if f.FromDate != "" {
			s = s.Filter("$ >= ?", "date", f.FromDate)
		}
		if f.ToDate != "" {
			s = s.Filter("$ <= ?", "date", f.ToDate)
		}
		err = s.All(ctx, &duties)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list duties: %w", err)
	}
	filtered := duties[:0]
	for i := range duties {
		if matchDuty(&duties[i], f) {
			filtered = append(filtered, duties[i])
		}
	}
	sortDuties(filtered)
	return filtered, nil
}

func (r *DynamoDBRepository) DeleteDuties(ctx context.Context, roleID int64, fromDate, toDate string) (int, error) {
	duties, err := r.ListDuties(ctx, DutyFilter{RoleID: roleID, FromDate: fromDate, ToDate: toDate})
	if err != nil {
		return 0, err
	}
	for i, d := range duties {
		if err := r.table(dutiesTable).Delete("role_id", d.RoleID).Range("date", d.Date).Run(ctx); err != nil {
			return i, fmt.Errorf("failed to delete duty %d: %w", d.ID, err)
		}
	}
	return len(duties), nil
}

func (r *DynamoDBRepository) LatchDutyMarker(ctx context.Context, dutyID int64, marker entity.DutyMarker, notificationID int64, at time.Time, forceOpen bool) (bool, error) {
	idCol, atCol, err := markerColumns(marker)
	if err != nil {
		return false, err
	}
	d, err := r.FindDuty(ctx, dutyID)
	if err != nil {
		return false, err
	}
	u := r.table(dutiesTable).Update("role_id", d.RoleID).Range("date", d.Date).
		Set(idCol, notificationID).
		Set(atCol, at)
	if forceOpen {
		u = u.Set("is_opened", true).Set("is_forced_opened", true)
	}
	err = u.If("attribute_not_exists($)", idCol).
		If("$ = ?", "is_opened", false).
		If("$ = ?", "id", dutyID).
		Run(ctx)
	if dynamo.IsCondCheckFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to latch duty marker: %w", err)
	}
	return true, nil
}

func (r *DynamoDBRepository) OpenDuty(ctx context.Context, dutyID int64) (bool, error) {
	d, err := r.FindDuty(ctx, dutyID)
	if err != nil {
		return false, err
	}
	err = r.table(dutiesTable).Update("role_id", d.RoleID).Range("date", d.Date).
		Set("is_opened", true).
		If("$ = ?", "is_opened", false).
		If("$ = ?", "id", dutyID).
		Run(ctx)
	if dynamo.IsCondCheckFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to open duty: %w", err)
	}
	return true, nil
}

func (r *DynamoDBRepository) CreateDutyAction(ctx context.Context, a *entity.DutyAction) error {
	id, err := r.nextID(ctx, model.SequenceDutyAction)
	if err != nil {
		return err
	}
	a.ID = id
	if err := r.table(dutyActionsTable).Put(a).Run(ctx); err != nil {
		return fmt.Errorf("failed to put duty action: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) SaveDutyAction(ctx context.Context, a *entity.DutyAction) error {
	err := r.table(dutyActionsTable).Put(a).If("attribute_exists($)", "id").Run(ctx)
	if dynamo.IsCondCheckFailed(err) {
		return entity.NotFound("duty action", a.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to put duty action: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) FindDutyAction(ctx context.Context, id int64) (*entity.DutyAction, error) {
	var a entity.DutyAction
	err := r.table(dutyActionsTable).Get("id", id).One(ctx, &a)
	if errors.Is(err, dynamo.ErrNotFound) {
		return nil, entity.NotFound("duty action", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duty action: %w", err)
	}
	return &a, nil
}

func (r *DynamoDBRepository) ListDutyActions(ctx context.Context, dutyID int64, unresolvedOnly bool) ([]entity.DutyAction, error) {
	var actions []entity.DutyAction
	q := r.table(dutyActionsTable).Get("duty_id", dutyID).Index("duty_id-index")
	if unresolvedOnly {
		q = q.Filter("$ = ?", "is_resolved", false)
	}
	if err := q.All(ctx, &actions); err != nil {
		return nil, fmt.Errorf("failed to list duty actions: %w", err)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })
	return actions, nil
}

func (r *DynamoDBRepository) CreateIncident(ctx context.Context, i *entity.Incident) error {
	id, err := r.nextID(ctx, model.SequenceIncident)
	if err != nil {
		return err
	}
	i.ID = id
	if err := r.table(incidentsTable).Put(i).Run(ctx); err != nil {
		return fmt.Errorf("failed to put incident: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) SaveIncident(ctx context.Context, i *entity.Incident) error {
	err := r.table(incidentsTable).Put(i).If("attribute_exists($)", "id").Run(ctx)
	if dynamo.IsCondCheckFailed(err) {
		return entity.NotFound("incident", i.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to put incident: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) FindIncident(ctx context.Context, id int64) (*entity.Incident, error) {
	var i entity.Incident
	err := r.table(incidentsTable).Get("id", id).One(ctx, &i)
	if errors.Is(err, dynamo.ErrNotFound) {
		return nil, entity.NotFound("incident", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find incident: %w", err)
	}
	return &i, nil
}

func (r *DynamoDBRepository) ListIncidents(ctx context.Context, f IncidentFilter) ([]entity.Incident, error) {
	var incidents []entity.Incident
	s := r.table(incidentsTable).Scan()
	if f.Status != "" {
		s = s.Filter("'status' = ?", f.Status)
	}
	if f.PointID != 0 {
		s = s.Filter("'point_id' = ?", f.PointID)
	}
	if err := s.All(ctx, &incidents); err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	filtered := incidents[:0]
	for i := range incidents {
		if matchIncident(&incidents[i], f) {
			filtered = append(filtered, incidents[i])
		}
	}
	sortIncidents(filtered)
	return filtered, nil
}

func (r *DynamoDBRepository) AddIncidentMessage(ctx context.Context, m *entity.IncidentMessage) error {
	id, err := r.nextID(ctx, model.SequenceMessage)
	if err != nil {
		return err
	}
	m.ID = id
	if err := r.table(incidentMessagesTable).Put(model.NewIncidentMessage(m)).Run(ctx); err != nil {
		return fmt.Errorf("failed to put incident message: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) ListIncidentMessages(ctx context.Context, incidentID int64) ([]entity.IncidentMessage, error) {
	var records []model.IncidentMessage
	err := r.table(incidentMessagesTable).Get("incident_id", incidentID).Order(dynamo.Descending).All(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to list incident messages: %w", err)
	}
	messages := make([]entity.IncidentMessage, 0, len(records))
	for _, rec := range records {
		m, err := rec.Entity()
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (r *DynamoDBRepository) ReserveNotificationID(ctx context.Context) (int64, error) {
	return r.nextID(ctx, model.SequenceNotification)
}

func (r *DynamoDBRepository) CreateNotification(ctx context.Context, n *entity.Notification) error {
	if n.ID == 0 {
		id, err := r.ReserveNotificationID(ctx)
		if err != nil {
			return err
		}
		n.ID = id
	}
	err := r.table(notificationsTable).Put(n).If("attribute_not_exists($)", "id").Run(ctx)
	if dynamo.IsCondCheckFailed(err) {
		return entity.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to put notification: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) FindNotification(ctx context.Context, id int64) (*entity.Notification, error) {
	var n entity.Notification
	err := r.table(notificationsTable).Get("id", id).One(ctx, &n)
	if errors.Is(err, dynamo.ErrNotFound) {
		return nil, entity.NotFound("notification", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find notification: %w", err)
	}
	return &n, nil
}

func (r *DynamoDBRepository) ListNotifications(ctx context.Context, userID int64) ([]entity.Notification, error) {
	var notifications []entity.Notification
	err := r.table(notificationsTable).Get("user_id", userID).Index("user_id-index").All(ctx, &notifications)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	sortNotifications(notifications)
	return notifications, nil
}

func (r *DynamoDBRepository) MarkNotificationSeen(ctx context.Context, id int64) error {
	err := r.table(notificationsTable).Update("id", id).Set("is_seen", true).If("attribute_exists($)", "id").Run(ctx)
	if dynamo.IsCondCheckFailed(err) {
		return entity.NotFound("notification", id)
	}
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}
