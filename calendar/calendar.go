package calendar

import (
	"fmt"
	"time"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/rickar/cal/v2"
)

// Range は休日が連続する期間。Start と End を含む
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Days() int {
	n := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

func (r Range) String() string {
	if r.Start.Equal(r.End) {
		return r.Start.Format(entity.DateLayout)
	}
	return r.Start.Format(entity.DateLayout) + " - " + r.End.Format(entity.DateLayout)
}

type Calendar struct {
	loc      *time.Location
	business *cal.BusinessCalendar
	holidays map[string]bool
	workdays map[string]bool
}

func New(loc *time.Location, extraHolidays, extraWorkdays []string) (*Calendar, error) {
	if loc == nil {
		loc = time.Local
	}
	c := &Calendar{
		loc:      loc,
		business: cal.NewBusinessCalendar(),
		holidays: map[string]bool{},
		workdays: map[string]bool{},
	}
	c.business.AddHoliday(RussianHolidays...)
	for _, s := range extraHolidays {
		if _, err := time.ParseInLocation(entity.DateLayout, s, loc); err != nil {
			return nil, fmt.Errorf("invalid extra holiday %q: %w", s, err)
		}
		c.holidays[s] = true
	}
	for _, s := range extraWorkdays {
		if _, err := time.ParseInLocation(entity.DateLayout, s, loc); err != nil {
			return nil, fmt.Errorf("invalid extra workday %q: %w", s, err)
		}
		c.workdays[s] = true
	}
	return c, nil
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Day はサービスのタイムゾーンでの0時に丸める
func (c *Calendar) Day(t time.Time) time.Time {
	return Day(t, c.loc)
}

func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (c *Calendar) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(entity.DateLayout, s, c.loc)
}

// IsWorkday は振替出勤日を祝日・週末より優先する
func (c *Calendar) IsWorkday(date time.Time) bool {
	d := c.Day(date)
	key := d.Format(entity.DateLayout)
	if c.workdays[key] {
		return true
	}
	if c.holidays[key] {
		return false
	}
	return c.business.IsWorkday(d)
}

// NonWorkingRanges は [start, end] と交わる休日の連続区間を昇順で返す
func (c *Calendar) NonWorkingRanges(start, end time.Time) []Range {
	from := c.Day(start)
	to := c.Day(end)
	var ranges []Range
	var cur *Range
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsWorkday(d) {
			if cur != nil {
				ranges = append(ranges, *cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &Range{Start: d}
		}
		cur.End = d
	}
	if cur != nil {
		ranges = append(ranges, *cur)
	}
	return ranges
}
