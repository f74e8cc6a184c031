package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/spf13/viper"
)

func NewConfigRepository(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.AutomaticEnv()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var c Config
	err = v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timezone", "Europe/Moscow")
	v.SetDefault("listen", ":8080")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "dispatchd.db")
	v.SetDefault("coverage.days_ahead", 14)
	v.SetDefault("coverage.min_days_ahead", 7)
	v.SetDefault("monitor.start_offset", "30m")
	v.SetDefault("monitor.step_delay", "15m")
	v.SetDefault("jobs.need_to_open_notification", "@every 1m")
	v.SetDefault("jobs.check_missing_duties", "@every 24h")
	v.SetDefault("jobs.ensure_weekend_duties", "@every 24h")
	v.SetDefault("notifier.rate_per_sec", 5)
	v.SetDefault("notifier.queue_size", 256)
}

type Config struct {
	Timezone              string                         `mapstructure:"timezone" validate:"required"`
	Listen                string                         `mapstructure:"listen" validate:"required"`
	Storage               StorageConfig                  `mapstructure:"storage"`
	UserList              []entity.User                  `mapstructure:"users" validate:"required,dive"`
	DutyRoleList          []entity.DutyRole              `mapstructure:"duty_roles" validate:"dive"`
	ExploitationRoleList  []entity.ExploitationRole      `mapstructure:"exploitation_roles" validate:"dive"`
	DutyPointList         []entity.DutyPoint             `mapstructure:"duty_points" validate:"dive"`
	WeekendAssignmentList []entity.WeekendDutyAssignment `mapstructure:"weekend_assignments" validate:"dive"`
	Calendar              CalendarConfig                 `mapstructure:"calendar"`
	Coverage              CoverageConfig                 `mapstructure:"coverage"`
	Monitor               MonitorConfig                  `mapstructure:"monitor"`
	Jobs                  JobsConfig                     `mapstructure:"jobs"`
	Notifier              NotifierConfig                 `mapstructure:"notifier"`
	Confluence            ConfluenceConfig               `mapstructure:"confluence"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=memory sqlite dynamodb"`
	Path   string `mapstructure:"path"`
}

type CalendarConfig struct {
	ExtraHolidays []string `mapstructure:"extra_holidays" validate:"dive,datetime=2006-01-02"`
	ExtraWorkdays []string `mapstructure:"extra_workdays" validate:"dive,datetime=2006-01-02"`
}

type CoverageConfig struct {
	DaysAhead    int `mapstructure:"days_ahead" validate:"gte=1"`
	MinDaysAhead int `mapstructure:"min_days_ahead" validate:"gte=0"`
}

type MonitorConfig struct {
	StartOffset time.Duration `mapstructure:"start_offset"`
	StepDelay   time.Duration `mapstructure:"step_delay"`
}

type JobsConfig struct {
	NeedToOpenNotification string `mapstructure:"need_to_open_notification" validate:"required"`
	CheckMissingDuties     string `mapstructure:"check_missing_duties" validate:"required"`
	EnsureWeekendDuties    string `mapstructure:"ensure_weekend_duties" validate:"required"`
}

type NotifierConfig struct {
	RatePerSec int `mapstructure:"rate_per_sec" validate:"gte=1"`
	QueueSize  int `mapstructure:"queue_size" validate:"gte=1"`
}

type ConfluenceConfig struct {
	AncestorID string `mapstructure:"ancestor_id"`
	Space      string `mapstructure:"space"`
	Domain     string `mapstructure:"domain"`
}

// Validate は構造の検証に加えて ID の参照整合性を確認する
func (c *Config) Validate() error {
	valid := validator.New()
	if err := valid.Struct(c); err != nil {
		return fmt.Errorf("validate config error: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("validate config error: timezone %q: %w", c.Timezone, err)
	}

	users := map[int64]bool{}
	for _, u := range c.UserList {
		if users[u.ID] {
			return fmt.Errorf("validate config error: duplicated user id %d", u.ID)
		}
		users[u.ID] = true
	}
	roles := map[int64]bool{}
	for _, r := range c.DutyRoleList {
		roles[r.ID] = true
	}
	exploitation := map[int64]bool{}
	for _, r := range c.ExploitationRoleList {
		exploitation[r.ID] = true
	}
	for _, p := range c.DutyPointList {
		if p.Level0Role != 0 && !exploitation[p.Level0Role] {
			return fmt.Errorf("validate config error: duty point %d refers unknown exploitation role %d", p.ID, p.Level0Role)
		}
		for _, id := range p.DutyRoles() {
			if !roles[id] {
				return fmt.Errorf("validate config error: duty point %d refers unknown duty role %d", p.ID, id)
			}
		}
		for _, id := range p.Admins {
			if !users[id] {
				return fmt.Errorf("validate config error: duty point %d refers unknown admin %d", p.ID, id)
			}
		}
	}
	type slot struct {
		role    int64
		weekday string
	}
	slots := map[slot]bool{}
	for _, a := range c.WeekendAssignmentList {
		if !roles[a.RoleID] {
			return fmt.Errorf("validate config error: weekend assignment %d refers unknown duty role %d", a.ID, a.RoleID)
		}
		if !users[a.UserID] {
			return fmt.Errorf("validate config error: weekend assignment %d refers unknown user %d", a.ID, a.UserID)
		}
		s := slot{a.RoleID, a.Weekday}
		if slots[s] {
			return fmt.Errorf("validate config error: duplicated weekend assignment for role %d weekday %q", a.RoleID, a.Weekday)
		}
		slots[s] = true
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) Users(_ context.Context) ([]entity.User, error) {
	return c.UserList, nil
}

func (c *Config) UserByID(_ context.Context, id int64) (*entity.User, error) {
	for _, u := range c.UserList {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, entity.NotFound("user", id)
}

func (c *Config) DispatchAdmins(_ context.Context) []entity.User {
	var admins []entity.User
	for _, u := range c.UserList {
		if u.IsDispatchAdmin {
			admins = append(admins, u)
		}
	}
	return admins
}

func (c *Config) DutyRoles(_ context.Context) []entity.DutyRole {
	return c.DutyRoleList
}

func (c *Config) DutyRoleByID(_ context.Context, id int64) (*entity.DutyRole, error) {
	for _, r := range c.DutyRoleList {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, entity.NotFound("duty role", id)
}

func (c *Config) ExploitationRoles(_ context.Context) []entity.ExploitationRole {
	return c.ExploitationRoleList
}

func (c *Config) DutyPoints(_ context.Context) []entity.DutyPoint {
	return c.DutyPointList
}

func (c *Config) DutyPointByID(_ context.Context, id int64) (*entity.DutyPoint, error) {
	for _, p := range c.DutyPointList {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, entity.NotFound("duty point", id)
}

func (c *Config) WeekendAssignments(_ context.Context) []entity.WeekendDutyAssignment {
	return c.WeekendAssignmentList
}
