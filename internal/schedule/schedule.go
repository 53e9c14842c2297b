package schedule

import (
	"errors"
	"time"

	"junks-backend/internal/models"
)

var ErrInvalidDate = errors.New("invalid date format")

func ParseDate(dateStr string, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

func IsSlotAllowed(label string) bool {
	for _, s := range models.TimeSlots {
		if s == label {
			return true
		}
	}
	return false
}

// IsDateBookable reports whether date can still be booked. Bookings open
// from the day after now, so today is already closed.
func IsDateBookable(dateStr string, loc *time.Location, now time.Time) (bool, error) {
	date, err := ParseDate(dateStr, loc)
	if err != nil {
		return false, err
	}
	local := now.In(loc)
	startToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return date.After(startToday), nil
}

func FilterReserved(slots []string, reserved map[string]bool) []string {
	filtered := make([]string, 0, len(slots))
	for _, s := range slots {
		if !reserved[s] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// AvailableSlots lists the slots of a bookable date that no booking holds
// yet. Held slots may still be booked; the list is a hint for the form.
func AvailableSlots(dateStr string, loc *time.Location, now time.Time, reserved map[string]bool) ([]string, error) {
	bookable, err := IsDateBookable(dateStr, loc, now)
	if err != nil {
		return nil, err
	}
	if !bookable {
		return []string{}, nil
	}
	return FilterReserved(models.TimeSlots, reserved), nil
}
