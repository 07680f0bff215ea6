// Package services holds domain services shared by the booking commands
// and queries: calendar resolution and option generation support.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingdomain "github.com/velvetcut/booking/internal/booking/domain"
	staffingdomain "github.com/velvetcut/booking/internal/staffing/domain"
)

// CalendarResolver computes a worker's working and free time for a date.
// Working time is the weekly rules minus recurring breaks, adjusted by
// date exceptions; free time additionally subtracts committed appointment
// blocks.
type CalendarResolver struct {
	staffing     staffingdomain.Repository
	appointments bookingdomain.AppointmentRepository
	location     *time.Location
}

func NewCalendarResolver(
	staffing staffingdomain.Repository,
	appointments bookingdomain.AppointmentRepository,
	location *time.Location,
) *CalendarResolver {
	return &CalendarResolver{
		staffing:     staffing,
		appointments: appointments,
		location:     location,
	}
}

// WorkIntervals resolves the worker's working time on date, in shop time:
// weekly rules, minus recurring breaks, then exceptions in stored order.
// A worker without an active rule does not work that day regardless of
// exceptions. A full-day TIME_OFF ends resolution with an empty day even
// when later rows would add time; a timed TIME_OFF subtracts its window;
// EXTRA_WORKING adds one.
func (r *CalendarResolver) WorkIntervals(ctx context.Context, workerID uuid.UUID, date time.Time) ([]bookingdomain.Interval, error) {
	day := staffingdomain.DayOfWeek(date)

	rules, err := r.staffing.ListRulesForDay(ctx, workerID, day)
	if err != nil {
		return nil, err
	}

	var work []bookingdomain.Interval
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		work = append(work, bookingdomain.Interval{
			Start: rule.StartTime.On(date, r.location),
			End:   rule.EndTime.On(date, r.location),
		})
	}
	work = bookingdomain.MergeIntervals(work)
	if len(work) == 0 {
		return nil, nil
	}

	breaks, err := r.staffing.ListBreaksForDay(ctx, workerID, day)
	if err != nil {
		return nil, err
	}
	var cuts []bookingdomain.Interval
	for _, br := range breaks {
		cuts = append(cuts, bookingdomain.Interval{
			Start: br.StartTime.On(date, r.location),
			End:   br.EndTime.On(date, r.location),
		})
	}
	work = bookingdomain.SubtractIntervals(work, cuts)

	exceptions, err := r.staffing.ListExceptionsForDate(ctx, workerID, date)
	if err != nil {
		return nil, err
	}
	for _, exc := range exceptions {
		switch exc.Type {
		case staffingdomain.ExceptionTimeOff:
			if exc.StartTime == nil || exc.EndTime == nil {
				return nil, nil
			}
			cut := bookingdomain.Interval{
				Start: exc.StartTime.On(date, r.location),
				End:   exc.EndTime.On(date, r.location),
			}
			work = bookingdomain.SubtractIntervals(work, []bookingdomain.Interval{cut})
		case staffingdomain.ExceptionExtraWorking:
			if exc.StartTime == nil || exc.EndTime == nil {
				continue
			}
			extra := bookingdomain.Interval{
				Start: exc.StartTime.On(date, r.location),
				End:   exc.EndTime.On(date, r.location),
			}
			work = bookingdomain.MergeIntervals(append(work, extra))
		}
	}
	return work, nil
}

// FreeIntervals resolves the worker's bookable time on date: working time
// minus committed appointment blocks.
func (r *CalendarResolver) FreeIntervals(ctx context.Context, workerID uuid.UUID, date time.Time) ([]bookingdomain.Interval, error) {
	work, err := r.WorkIntervals(ctx, workerID, date)
	if err != nil {
		return nil, err
	}
	if len(work) == 0 {
		return nil, nil
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.location)
	dayEnd := dayStart.AddDate(0, 0, 1)
	blocks, err := r.appointments.ListBlocksInRange(ctx, []uuid.UUID{workerID}, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	var busy []bookingdomain.Interval
	for _, b := range blocks[workerID] {
		busy = append(busy, b.Interval())
	}
	return bookingdomain.SubtractIntervals(work, busy), nil
}

// FreeIntervalsBulk resolves free time for several workers with one block
// query for the whole set, keeping agenda-sized requests at a handful of
// statements.
func (r *CalendarResolver) FreeIntervalsBulk(ctx context.Context, workerIDs []uuid.UUID, date time.Time) (map[uuid.UUID][]bookingdomain.Interval, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	blocks, err := r.appointments.ListBlocksInRange(ctx, workerIDs, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID][]bookingdomain.Interval, len(workerIDs))
	for _, workerID := range workerIDs {
		work, err := r.WorkIntervals(ctx, workerID, date)
		if err != nil {
			return nil, err
		}
		var busy []bookingdomain.Interval
		for _, b := range blocks[workerID] {
			busy = append(busy, b.Interval())
		}
		out[workerID] = bookingdomain.SubtractIntervals(work, busy)
	}
	return out, nil
}
