// Package domain models the shop's service providers and their calendars:
// weekly schedule rules, recurring breaks and dated exceptions.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the service role of a worker. It doubles as the assignment group
// for services (see the catalog package).
type Role string

const (
	RoleBarber Role = "BARBER"
	RoleNails  Role = "NAILS"
	RoleFacial Role = "FACIAL"
)

// Worker is a service provider. Workers referenced by appointment blocks
// are never hard-deleted; Active is flipped off instead.
type Worker struct {
	ID          uuid.UUID
	UserID      *uuid.UUID
	DisplayName string
	Role        Role
	Active      bool
}

// ScheduleRule is a weekly working window. At most one active rule exists
// per (worker, day_of_week); storage enforces it.
type ScheduleRule struct {
	ID        uuid.UUID
	WorkerID  uuid.UUID
	DayOfWeek int // 0=Monday .. 6=Sunday
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Active    bool
}

// Break is a recurring weekly pause inside the working window.
type Break struct {
	ID        uuid.UUID
	WorkerID  uuid.UUID
	DayOfWeek int
	StartTime TimeOfDay
	EndTime   TimeOfDay
}

// ExceptionType distinguishes dated calendar exceptions.
type ExceptionType string

const (
	ExceptionTimeOff      ExceptionType = "TIME_OFF"
	ExceptionExtraWorking ExceptionType = "EXTRA_WORKING"
)

// Exception is a dated override of the weekly calendar. TIME_OFF with nil
// times takes the whole day off; EXTRA_WORKING always carries both times.
type Exception struct {
	ID        uuid.UUID
	WorkerID  uuid.UUID
	Date      time.Time // date only, midnight in shop timezone
	Type      ExceptionType
	StartTime *TimeOfDay
	EndTime   *TimeOfDay
	Note      string
}

// DayOfWeek maps a date to the 0=Monday..6=Sunday convention used by
// schedule rules and breaks.
func DayOfWeek(date time.Time) int {
	// time.Weekday has Sunday=0; the calendar uses Monday=0.
	return (int(date.Weekday()) + 6) % 7
}
