package repository

import (
	"context"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
)

type DutyFilter struct {
	RoleID   int64
	UserID   int64
	FromDate string
	ToDate   string
	// StartBefore/EndAfter はゼロ値なら無視する
	StartBefore time.Time
	EndAfter    time.Time
	IsOpened    *bool
}

type DutyRepository interface {
	CreateDutyIfAbsent(context.Context, *entity.Duty) (bool, error)
	SaveDuty(context.Context, *entity.Duty) error
	FindDuty(context.Context, int64) (*entity.Duty, error)
	ListDuties(context.Context, DutyFilter) ([]entity.Duty, error)
	DeleteDuties(ctx context.Context, roleID int64, fromDate, toDate string) (int, error)
	// LatchDutyMarker は未オープンかつマーカー未設定のときだけ書き込む
	LatchDutyMarker(ctx context.Context, dutyID int64, marker entity.DutyMarker, notificationID int64, at time.Time, forceOpen bool) (bool, error)
	// OpenDuty は is_opened だけを立てる。既にオープン済みなら false
	OpenDuty(ctx context.Context, dutyID int64) (bool, error)
}

type DutyActionRepository interface {
	CreateDutyAction(context.Context, *entity.DutyAction) error
	SaveDutyAction(context.Context, *entity.DutyAction) error
	FindDutyAction(context.Context, int64) (*entity.DutyAction, error)
	ListDutyActions(ctx context.Context, dutyID int64, unresolvedOnly bool) ([]entity.DutyAction, error)
}

type IncidentFilter struct {
	From              time.Time
	To                time.Time
	Status            entity.IncidentStatus
	ResponsibleUserID int64
	PointID           int64
	AuthorID          int64
}

type IncidentRepository interface {
	CreateIncident(context.Context, *entity.Incident) error
	SaveIncident(context.Context, *entity.Incident) error
	FindIncident(context.Context, int64) (*entity.Incident, error)
	ListIncidents(context.Context, IncidentFilter) ([]entity.Incident, error)
	AddIncidentMessage(context.Context, *entity.IncidentMessage) error
	ListIncidentMessages(context.Context, int64) ([]entity.IncidentMessage, error)
}

type NotificationRepository interface {
	ReserveNotificationID(context.Context) (int64, error)
	CreateNotification(context.Context, *entity.Notification) error
	FindNotification(context.Context, int64) (*entity.Notification, error)
	ListNotifications(ctx context.Context, userID int64) ([]entity.Notification, error)
	MarkNotificationSeen(ctx context.Context, id int64) error
}

// DirectoryRepository は設定ファイル由来のユーザー・ロール・ポイント
type DirectoryRepository interface {
	Users(context.Context) ([]entity.User, error)
	UserByID(context.Context, int64) (*entity.User, error)
	DispatchAdmins(context.Context) []entity.User
	DutyRoles(context.Context) []entity.DutyRole
	DutyRoleByID(context.Context, int64) (*entity.DutyRole, error)
	ExploitationRoles(context.Context) []entity.ExploitationRole
	DutyPoints(context.Context) []entity.DutyPoint
	DutyPointByID(context.Context, int64) (*entity.DutyPoint, error)
	WeekendAssignments(context.Context) []entity.WeekendDutyAssignment
}

type Store interface {
	DutyRepository
	DutyActionRepository
	IncidentRepository
	NotificationRepository
	Close() error
}

type Repository interface {
	Store
	DirectoryRepository
}

type RepositoryFacade struct {
	Store
	DirectoryRepository
}

type ReportExporter interface {
	ExportReport(ctx context.Context, title, body string) (string, error)
}

func NewRepository(store Store, directory DirectoryRepository) Repository {
	return RepositoryFacade{
		Store:               store,
		DirectoryRepository: directory,
	}
}
