package calendar

import "time"

// minYear/maxYear bound the static, documented holiday table. Requests for
// dates outside this range are still classified (IsTrading degrades to pure
// weekend arithmetic past the table), matching spec.md §4.1's note that
// OutOfRange is not fatal.
const (
	minYear = 1990
	maxYear = 2060
)

func init() {
	registry["US"] = &Calendar{name: "US", holidays: buildUSHolidays()}
}

// buildUSHolidays constructs the observed United States equity market
// holiday set for [minYear, maxYear]: New Year's Day, Martin Luther King
// Jr. Day, Washington's Birthday, Good Friday, Memorial Day, Juneteenth
// (observed from 2022 onward, when NYSE added it), Independence Day, Labor
// Day, Thanksgiving, and Christmas — each shifted per the standard
// Saturday-observed-Friday / Sunday-observed-Monday rule where applicable.
func buildUSHolidays() map[string]struct{} {
	h := make(map[string]struct{})
	add := func(d time.Time) { h[observed(d)] = struct{}{} }

	for y := minYear; y <= maxYear; y++ {
		add(time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC))
		add(nthWeekday(y, time.January, time.Monday, 3))    // MLK Day
		add(nthWeekday(y, time.February, time.Monday, 3))   // Washington's Birthday
		add(goodFriday(y))
		add(lastWeekday(y, time.May, time.Monday)) // Memorial Day
		if y >= 2022 {
			add(time.Date(y, time.June, 19, 0, 0, 0, 0, time.UTC)) // Juneteenth
		}
		add(time.Date(y, time.July, 4, 0, 0, 0, 0, time.UTC))
		add(nthWeekday(y, time.September, time.Monday, 1)) // Labor Day
		add(nthWeekday(y, time.November, time.Thursday, 4))
		add(time.Date(y, time.December, 25, 0, 0, 0, 0, time.UTC))
	}
	return h
}

// observed shifts a holiday falling on Saturday to the preceding Friday and
// one falling on Sunday to the following Monday, then formats it as a
// lookup key.
func observed(d time.Time) string {
	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, -1)
	case time.Sunday:
		d = d.AddDate(0, 0, 1)
	}
	return key(d)
}

// nthWeekday returns the nth occurrence of weekday in the given month/year.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	d = d.AddDate(0, 0, offset+7*(n-1))
	return d
}

// lastWeekday returns the last occurrence of weekday in the given month/year.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	last := firstOfNext.AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// goodFriday computes Good Friday (two days before Easter Sunday) via the
// anonymous Gregorian algorithm (Meeus/Jones/Butcher).
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}
