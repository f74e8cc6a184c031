package calendar

import (
	"time"

	"github.com/rickar/cal/v2"
)

func fixed(name string, month time.Month, day int) *cal.Holiday {
	return &cal.Holiday{
		Name:  name,
		Type:  cal.ObservancePublic,
		Month: month,
		Day:   day,
		Func:  cal.CalcDayOfMonth,
	}
}

// RussianHolidays は連邦の祝日。振替は設定の extra_holidays / extra_workdays で表す
var RussianHolidays = []*cal.Holiday{
	fixed("New Year Holidays", time.January, 1),
	fixed("New Year Holidays", time.January, 2),
	fixed("New Year Holidays", time.January, 3),
	fixed("New Year Holidays", time.January, 4),
	fixed("New Year Holidays", time.January, 5),
	fixed("New Year Holidays", time.January, 6),
	fixed("Orthodox Christmas Day", time.January, 7),
	fixed("New Year Holidays", time.January, 8),
	fixed("Defender of the Fatherland Day", time.February, 23),
	fixed("International Women's Day", time.March, 8),
	fixed("Spring and Labour Day", time.May, 1),
	fixed("Victory Day", time.May, 9),
	fixed("Russia Day", time.June, 12),
	fixed("Unity Day", time.November, 4),
}
