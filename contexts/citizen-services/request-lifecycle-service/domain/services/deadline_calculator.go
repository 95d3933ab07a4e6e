package services

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"

	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
)

// HolidayCalendar is an immutable set of dates excluded from business-day
// counting. The zero value is an empty calendar.
type HolidayCalendar struct {
	days map[civil.Date]struct{}
}

func NewHolidayCalendar(days ...civil.Date) HolidayCalendar {
	set := make(map[civil.Date]struct{}, len(days))
	for _, day := range days {
		if day.IsValid() {
			set[day] = struct{}{}
		}
	}
	return HolidayCalendar{days: set}
}

func (c HolidayCalendar) Contains(day civil.Date) bool {
	_, ok := c.days[day]
	return ok
}

func (c HolidayCalendar) Len() int {
	return len(c.days)
}

// Dates returns the calendar sorted ascending.
func (c HolidayCalendar) Dates() []civil.Date {
	out := make([]civil.Date, 0, len(c.days))
	for day := range c.days {
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

func IsBusinessDay(day civil.Date, holidays HolidayCalendar) bool {
	switch weekday(day) {
	case time.Saturday, time.Sunday:
		return false
	}
	return !holidays.Contains(day)
}

// ComputeDueDate counts businessDays eligible days strictly after start and
// returns the day on which the count is reached. It never mutates state and
// backs both committed assignments and dry-run previews.
func ComputeDueDate(start civil.Date, businessDays int, holidays HolidayCalendar) (civil.Date, error) {
	if businessDays <= 0 {
		return civil.Date{}, domainerrors.ErrNonPositiveDays
	}
	if !start.IsValid() {
		return civil.Date{}, domainerrors.ErrInvalidDate
	}

	day := start
	counted := 0
	for counted < businessDays {
		day = day.AddDays(1)
		if IsBusinessDay(day, holidays) {
			counted++
		}
	}
	return day, nil
}

// BusinessDaysBetween counts eligible days in (from, to]. It returns zero when
// to is not after from.
func BusinessDaysBetween(from civil.Date, to civil.Date, holidays HolidayCalendar) int {
	if !to.After(from) {
		return 0
	}
	count := 0
	for day := from.AddDays(1); !day.After(to); day = day.AddDays(1) {
		if IsBusinessDay(day, holidays) {
			count++
		}
	}
	return count
}

// DeadlineStatus summarizes how a due date relates to today. Time left is
// counted in business days; lateness in calendar days.
type DeadlineStatus struct {
	DueAt                 civil.Date
	Today                 civil.Date
	RemainingBusinessDays int
	OverdueCalendarDays   int
	Overdue               bool
}

func EvaluateDeadline(today civil.Date, due civil.Date, holidays HolidayCalendar) DeadlineStatus {
	status := DeadlineStatus{DueAt: due, Today: today}
	if today.After(due) {
		status.Overdue = true
		status.OverdueCalendarDays = today.DaysSince(due)
		return status
	}
	status.RemainingBusinessDays = BusinessDaysBetween(today, due, holidays)
	return status
}

func weekday(day civil.Date) time.Weekday {
	return day.In(time.UTC).Weekday()
}
