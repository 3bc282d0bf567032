// Package availability computes legal booking start times for a service
// bundle on a staff member's calendar, following the free-interval walk
// described by the booking core's scheduling rules.
package availability

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/models"
	"github.com/saloncore/booking-core/internal/repository"
)

// Engine computes AvailableDays and Slots. It is read-only: a pure
// function of its repository's snapshot at call time; the caller must
// re-verify any chosen instant at booking time.
type Engine struct {
	catalog     *catalog.Catalog
	bookingRepo *repository.BookingRepository
}

func New(cat *catalog.Catalog, bookingRepo *repository.BookingRepository) *Engine {
	return &Engine{catalog: cat, bookingRepo: bookingRepo}
}

// interval is a half-open [start, end) range in UTC.
type interval struct {
	start, end time.Time
}

// Slots returns every legal start time for bundle performed by staffID on
// localDate (interpreted in loc), given policy p and the current instant
// now.
func (e *Engine) Slots(ctx context.Context, staffID string, localDate time.Time, serviceIDs []string, loc *time.Location, now time.Time, p *models.Policy) ([]time.Time, error) {
	bundle, effectiveDuration, err := e.resolveBundle(ctx, staffID, serviceIDs)
	if err != nil {
		return nil, err
	}
	_ = bundle

	weekday := models.WeekdayFromTime(localDate.Weekday())
	windows, breaks, err := e.catalog.WorkingStructure(ctx, staffID, weekday)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	free, err := e.freeIntervals(ctx, staffID, localDate, loc, windows, breaks)
	if err != nil {
		return nil, err
	}

	grid := time.Duration(p.SlotGridMinutes) * time.Minute
	duration := time.Duration(effectiveDuration) * time.Minute
	dayStart := time.Date(localDate.Year(), localDate.Month(), localDate.Day(), 0, 0, 0, 0, loc)
	leadCutoff := now.Add(time.Duration(p.LeadTimeMinutes) * time.Minute)
	horizonCutoff := now.Add(time.Duration(p.FutureWindowDays) * 24 * time.Hour)

	var starts []time.Time
	for _, w := range windows {
		winStart, err := clockOnDate(dayStart, w.OpenTime)
		if err != nil {
			continue
		}
		winEnd, err := clockOnDate(dayStart, w.CloseTime)
		if err != nil || !winEnd.After(winStart) {
			continue
		}
		for t := winStart; !t.Add(duration).After(winEnd); t = t.Add(grid) {
			if t.Before(leadCutoff) || t.After(horizonCutoff) {
				continue
			}
			if !fitsWithinFreeInterval(t, duration, free) {
				continue
			}
			starts = append(starts, t)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts, nil
}

// fitsWithinFreeInterval reports whether [t, t+duration) is entirely
// contained in one of the free sub-intervals (working windows minus breaks
// minus occupied bookings).
func fitsWithinFreeInterval(t time.Time, duration time.Duration, free []interval) bool {
	end := t.Add(duration)
	for _, iv := range free {
		if !t.Before(iv.start) && !end.After(iv.end) {
			return true
		}
	}
	return false
}

// AvailableDays returns the set of days in (year, month) for which Slots
// is non-empty, expressed as day-of-month values.
func (e *Engine) AvailableDays(ctx context.Context, staffID string, year int, month time.Month, serviceIDs []string, loc *time.Location, now time.Time, p *models.Policy) ([]int, error) {
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	var days []int
	for d := 1; d <= daysInMonth; d++ {
		date := time.Date(year, month, d, 0, 0, 0, 0, loc)
		slots, err := e.Slots(ctx, staffID, date, serviceIDs, loc, now, p)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			days = append(days, d)
		}
	}
	return days, nil
}

// StaffSlot pairs a legal start time with the staff member offering it,
// used by the "any staff" mode.
type StaffSlot struct {
	Start   time.Time
	StaffID string
}

// SlotsAny computes legal starts across every staff member qualified for
// the bundle, applying the any-staff tie-break: at each distinct instant,
// prefer the staff member whose next-occupied boundary is farthest from
// that instant (maximizing contiguous free room), ties broken by lowest
// staff id.
func (e *Engine) SlotsAny(ctx context.Context, serviceIDs []string, localDate time.Time, loc *time.Location, now time.Time, p *models.Policy) ([]StaffSlot, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	staffCandidates, err := e.catalog.StaffForService(ctx, serviceIDs[0])
	if err != nil {
		return nil, err
	}
	for _, extra := range serviceIDs[1:] {
		qualified, err := e.catalog.StaffForService(ctx, extra)
		if err != nil {
			return nil, err
		}
		staffCandidates = intersectStaff(staffCandidates, qualified)
	}

	type perStaff struct {
		staffID string
		starts  map[time.Time]bool
		free    []interval
	}
	var staffData []perStaff
	for _, staff := range staffCandidates {
		starts, err := e.Slots(ctx, staff.ID, localDate, serviceIDs, loc, now, p)
		if err != nil {
			return nil, err
		}
		set := make(map[time.Time]bool, len(starts))
		for _, s := range starts {
			set[s] = true
		}

		weekday := models.WeekdayFromTime(localDate.Weekday())
		windows, breaks, err := e.catalog.WorkingStructure(ctx, staff.ID, weekday)
		if err != nil {
			return nil, err
		}
		free, err := e.freeIntervals(ctx, staff.ID, localDate, loc, windows, breaks)
		if err != nil {
			return nil, err
		}
		staffData = append(staffData, perStaff{staffID: staff.ID, starts: set, free: free})
	}

	allStarts := map[time.Time]bool{}
	for _, sd := range staffData {
		for t := range sd.starts {
			allStarts[t] = true
		}
	}

	var result []StaffSlot
	for t := range allStarts {
		bestStaffID := ""
		var bestRoom time.Duration = -1
		for _, sd := range staffData {
			if !sd.starts[t] {
				continue
			}
			room := roomAfter(t, sd.free)
			if room > bestRoom || (room == bestRoom && (bestStaffID == "" || sd.staffID < bestStaffID)) {
				bestRoom = room
				bestStaffID = sd.staffID
			}
		}
		result = append(result, StaffSlot{Start: t, StaffID: bestStaffID})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	return result, nil
}

// AvailableDaysAny mirrors AvailableDays for the any-staff mode.
func (e *Engine) AvailableDaysAny(ctx context.Context, serviceIDs []string, year int, month time.Month, loc *time.Location, now time.Time, p *models.Policy) ([]int, error) {
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	var days []int
	for d := 1; d <= daysInMonth; d++ {
		date := time.Date(year, month, d, 0, 0, 0, 0, loc)
		slots, err := e.SlotsAny(ctx, serviceIDs, date, loc, now, p)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			days = append(days, d)
		}
	}
	return days, nil
}

// roomAfter returns how far t is from the end of the free interval that
// contains it; used as the any-staff tie-break metric.
func roomAfter(t time.Time, free []interval) time.Duration {
	for _, iv := range free {
		if !t.Before(iv.start) && t.Before(iv.end) {
			return iv.end.Sub(t)
		}
	}
	return 0
}

func intersectStaff(a, b []catalog.StaffView) []catalog.StaffView {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s.ID] = true
	}
	var out []catalog.StaffView
	for _, s := range a {
		if set[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// resolveBundle validates that staffID can perform every service in
// serviceIDs and returns the effective duration in minutes, rounding each
// service's duration by the staff's per-service speed.
func (e *Engine) resolveBundle(ctx context.Context, staffID string, serviceIDs []string) ([]catalog.ServiceView, int, error) {
	services, err := e.catalog.GetServices(ctx, serviceIDs)
	if err != nil {
		return nil, 0, err
	}
	bundle := make([]catalog.ServiceView, 0, len(serviceIDs))
	total := 0
	for _, id := range serviceIDs {
		svc, ok := services[id]
		if !ok {
			return nil, 0, fmt.Errorf("NoSkillMatch: unknown service %s", id)
		}
		has, speed, err := e.catalog.StaffSkill(ctx, staffID, id)
		if err != nil {
			return nil, 0, err
		}
		if !has {
			return nil, 0, fmt.Errorf("NoSkillMatch: staff %s cannot perform %s", staffID, id)
		}
		bundle = append(bundle, svc)
		total += roundMinutes(float64(svc.DurationMinutes) * speed)
	}
	return bundle, total, nil
}

func roundMinutes(m float64) int {
	return int(m + 0.5)
}

// freeIntervals computes the free-interval walk for staffID on localDate:
// working windows minus breaks minus occupied (non-terminal, hold-bearing
// included) bookings. Midnight-crossing intervals are not produced;
// bundles may not be scheduled across the local-day boundary.
func (e *Engine) freeIntervals(ctx context.Context, staffID string, localDate time.Time, loc *time.Location, windows []catalog.WorkingWindowView, breaks []catalog.BreakView) ([]interval, error) {
	dayStart := time.Date(localDate.Year(), localDate.Month(), localDate.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	var free []interval
	for _, w := range windows {
		start, err := clockOnDate(dayStart, w.OpenTime)
		if err != nil {
			continue
		}
		end, err := clockOnDate(dayStart, w.CloseTime)
		if err != nil {
			continue
		}
		if !end.After(start) {
			continue
		}
		free = append(free, interval{start: start, end: end})
	}

	for _, b := range breaks {
		start, err := clockOnDate(dayStart, b.StartTime)
		if err != nil {
			continue
		}
		end, err := clockOnDate(dayStart, b.EndTime)
		if err != nil {
			continue
		}
		free = subtract(free, interval{start: start, end: end})
	}

	occupied, err := e.bookingRepo.FindOverlapping(ctx, nil, staffID, dayStart, dayEnd, "")
	if err != nil {
		return nil, err
	}
	for _, booking := range occupied {
		free = subtract(free, interval{start: booking.StartsAt, end: booking.EndsAt})
	}

	sort.Slice(free, func(i, j int) bool { return free[i].start.Before(free[j].start) })
	return free, nil
}

func subtract(free []interval, cut interval) []interval {
	var out []interval
	for _, iv := range free {
		if !cut.end.After(iv.start) || !cut.start.Before(iv.end) {
			out = append(out, iv)
			continue
		}
		if cut.start.After(iv.start) {
			out = append(out, interval{start: iv.start, end: minTime(cut.start, iv.end)})
		}
		if cut.end.Before(iv.end) {
			out = append(out, interval{start: maxTime(cut.end, iv.start), end: iv.end})
		}
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// clockOnDate parses an "HH:MM" string and returns the corresponding
// instant on day.
func clockOnDate(day time.Time, hhmm string) (time.Time, error) {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}

// parseHHMM parses "HH:MM" into hour and minute components.
func parseHHMM(timeStr string) (int, int, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: expected HH:MM, got %s", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour: %s", parts[0])
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute: %s", parts[1])
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range: %s", timeStr)
	}
	return hour, minute, nil
}
