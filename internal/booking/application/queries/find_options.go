// Package queries holds the read-side handlers of the booking context:
// availability option generation and agenda views.
package queries

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/velvetcut/booking/internal/booking/application/services"
	bookingdomain "github.com/velvetcut/booking/internal/booking/domain"
	catalogdomain "github.com/velvetcut/booking/internal/catalog/domain"
	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
	staffingdomain "github.com/velvetcut/booking/internal/staffing/domain"
)

// BarberChoice selects how the barber block's worker is picked.
type BarberChoice string

const (
	// BarberSpecific pins the barber block to one worker.
	BarberSpecific BarberChoice = "SPECIFIC"
	// BarberNearest tries every active barber and keeps whichever
	// produces the earliest options.
	BarberNearest BarberChoice = "NEAREST"
)

// TokenIssuer mints an opaque option id for a payload. Implemented by the
// signing token codec.
type TokenIssuer interface {
	Issue(payload bookingdomain.OptionPayload) (string, error)
}

// FindOptionsQuery asks for bookable options on a date.
type FindOptionsQuery struct {
	Date                time.Time
	ServiceIDs          []uuid.UUID
	BarberChoice        BarberChoice
	BarberID            *uuid.UUID
	SlotIntervalMinutes int
	Limit               int
	WindowStart         *time.Time
	WindowEnd           *time.Time
}

// OptionService is the public shape of one service inside a block. Prices
// never appear here.
type OptionService struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	DurationMinutes     int       `json:"duration"`
	BufferBeforeMinutes int       `json:"buffer_before"`
	BufferAfterMinutes  int       `json:"buffer_after"`
}

// OptionBlockResult is one block of a generated option.
type OptionBlockResult struct {
	Sequence   int             `json:"sequence"`
	WorkerID   uuid.UUID       `json:"worker_id"`
	WorkerName string          `json:"worker_name"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	ServiceIDs []uuid.UUID     `json:"service_ids"`
	Services   []OptionService `json:"services"`
}

// OptionResult is one bookable option with its signed id.
type OptionResult struct {
	OptionID         string              `json:"option_id"`
	AppointmentStart time.Time           `json:"appointment_start"`
	AppointmentEnd   time.Time           `json:"appointment_end"`
	GapTotalMinutes  int                 `json:"gap_total_minutes"`
	Blocks           []OptionBlockResult `json:"blocks"`
}

// serviceGroup bundles the services one worker serves back to back. The
// barber group has no fixed worker; a candidate serves it. NAILS and
// FACIAL groups carry the fixed worker that resolved them.
type serviceGroup struct {
	role         staffingdomain.Role
	fixedWorker  *uuid.UUID
	services     []catalogdomain.Service
	totalMinutes int
}

// FindOptionsHandler generates conflict-free booking options: candidate
// start instants stepped across the involved workers' free time, crossed
// with group-order permutations and barber candidates.
type FindOptionsHandler struct {
	catalog  catalogdomain.Repository
	staffing staffingdomain.Repository
	calendar *services.CalendarResolver
	tokens   TokenIssuer
	logger   *slog.Logger
}

func NewFindOptionsHandler(
	catalog catalogdomain.Repository,
	staffing staffingdomain.Repository,
	calendar *services.CalendarResolver,
	tokens TokenIssuer,
	logger *slog.Logger,
) *FindOptionsHandler {
	return &FindOptionsHandler{
		catalog:  catalog,
		staffing: staffing,
		calendar: calendar,
		tokens:   tokens,
		logger:   logger,
	}
}

// Handle enumerates up to Limit options for the query. Generation stops
// early when the limit is reached or the request deadline fires.
func (h *FindOptionsHandler) Handle(ctx context.Context, q FindOptionsQuery) ([]OptionResult, error) {
	if len(q.ServiceIDs) == 0 {
		return nil, shareddomain.NewValidation("at least one service is required")
	}
	if q.SlotIntervalMinutes <= 0 || q.Limit <= 0 {
		return nil, shareddomain.NewValidation("slot interval and limit must be positive")
	}

	groups, err := h.resolveGroups(ctx, q.ServiceIDs)
	if err != nil {
		return nil, err
	}

	barbers, err := h.resolveBarberCandidates(ctx, groups, q)
	if err != nil {
		return nil, err
	}
	if hasBarberGroup(groups) && len(barbers) == 0 {
		// No suitable barber means no options, not an error.
		return []OptionResult{}, nil
	}

	free, err := h.loadFreeIntervals(ctx, groups, barbers, q.Date)
	if err != nil {
		return nil, err
	}

	window := h.searchWindow(free, q)
	if window.IsEmpty() {
		return []OptionResult{}, nil
	}

	total := 0
	for _, g := range groups {
		total += g.totalMinutes
	}
	totalDur := time.Duration(total) * time.Minute

	workerNames, err := h.workerNames(ctx, groups, barbers)
	if err != nil {
		return nil, err
	}

	perms := permutations(len(groups))
	step := time.Duration(q.SlotIntervalMinutes) * time.Minute
	seen := make(map[string]struct{})
	results := make([]OptionResult, 0, q.Limit)

	for cursor := window.Start; !cursor.Add(totalDur).After(window.End); cursor = cursor.Add(step) {
		if err := ctx.Err(); err != nil {
			h.logger.WarnContext(ctx, "option generation interrupted",
				slog.Int("options_so_far", len(results)))
			break
		}

		ordered := h.orderPermutations(perms, groups, barbers, free, cursor)

		for _, perm := range ordered {
			for _, barber := range barbers {
				payload, ok := buildOption(groups, perm, barber, free, cursor)
				if !ok {
					continue
				}
				sig := payload.Signature()
				if _, dup := seen[sig]; dup {
					continue
				}
				seen[sig] = struct{}{}

				result, err := h.toResult(payload, groups, perm, workerNames)
				if err != nil {
					return nil, err
				}
				results = append(results, result)
				if len(results) >= q.Limit {
					return results, nil
				}
			}
		}
	}
	return results, nil
}

// resolveGroups partitions the services into role groups. A service with a
// resolved fixed worker belongs to that worker's role group; everything
// else is barber work. Fixation onto a worker who is a barber only routes
// the service into the barber group, where candidates serve it. At most
// one group exists per role; a NAILS/FACIAL group keeps the first fixed
// worker that resolved it.
func (h *FindOptionsHandler) resolveGroups(ctx context.Context, serviceIDs []uuid.UUID) ([]serviceGroup, error) {
	svcs, err := h.catalog.FindActiveByIDs(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	if len(svcs) != len(serviceIDs) {
		return nil, shareddomain.NewValidation("one or more services are unknown or inactive")
	}

	categoryIDs := make([]uuid.UUID, 0, len(svcs))
	for _, s := range svcs {
		categoryIDs = append(categoryIDs, s.CategoryID)
	}
	categories, err := h.catalog.FindCategories(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}

	byRole := make(map[staffingdomain.Role]*serviceGroup)
	workers := make(map[uuid.UUID]*staffingdomain.Worker)
	order := make([]*serviceGroup, 0, 3)

	group := func(role staffingdomain.Role) *serviceGroup {
		g, ok := byRole[role]
		if !ok {
			g = &serviceGroup{role: role}
			byRole[role] = g
			order = append(order, g)
		}
		return g
	}

	for _, s := range svcs {
		category, ok := categories[s.CategoryID]
		var catRef *catalogdomain.ServiceCategory
		if ok {
			catRef = &category
		}

		role := staffingdomain.RoleBarber
		var fixed *uuid.UUID
		if id := s.ResolvedFixedWorkerID(catRef); id != nil {
			worker, ok := workers[*id]
			if !ok {
				worker, err = h.staffing.FindWorker(ctx, *id)
				if err != nil {
					return nil, err
				}
				workers[*id] = worker
			}
			if worker == nil || !worker.Active {
				return nil, shareddomain.NewValidation("assigned worker is not available")
			}
			role = worker.Role
			if role != staffingdomain.RoleBarber {
				workerID := *id
				fixed = &workerID
			}
		}

		g := group(role)
		if g.fixedWorker == nil && fixed != nil {
			g.fixedWorker = fixed
		}
		g.services = append(g.services, s)
		g.totalMinutes += s.EffectiveMinutes()
	}

	groups := make([]serviceGroup, 0, len(order))
	for _, g := range order {
		groups = append(groups, *g)
	}
	return groups, nil
}

func (h *FindOptionsHandler) resolveBarberCandidates(ctx context.Context, groups []serviceGroup, q FindOptionsQuery) ([]uuid.UUID, error) {
	if !hasBarberGroup(groups) {
		// No barber block; a single placeholder keeps the loops uniform.
		return []uuid.UUID{uuid.Nil}, nil
	}
	switch q.BarberChoice {
	case BarberSpecific:
		if q.BarberID == nil {
			return nil, shareddomain.NewValidation("barber_id is required for a specific barber choice")
		}
		worker, err := h.staffing.FindWorker(ctx, *q.BarberID)
		if err != nil {
			return nil, err
		}
		// An unknown, inactive or non-barber choice yields no candidates
		// and therefore no options.
		if worker == nil || !worker.Active || worker.Role != staffingdomain.RoleBarber {
			return nil, nil
		}
		return []uuid.UUID{worker.ID}, nil
	case BarberNearest:
		workers, err := h.staffing.ListActiveByRole(ctx, staffingdomain.RoleBarber)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(workers))
		for _, w := range workers {
			ids = append(ids, w.ID)
		}
		return ids, nil
	default:
		return nil, shareddomain.NewValidation(fmt.Sprintf("unknown barber choice %q", q.BarberChoice))
	}
}

// loadFreeIntervals resolves every involved worker's free time once; the
// search loops only touch this in-memory cache.
func (h *FindOptionsHandler) loadFreeIntervals(ctx context.Context, groups []serviceGroup, barbers []uuid.UUID, date time.Time) (map[uuid.UUID][]bookingdomain.Interval, error) {
	ids := make([]uuid.UUID, 0, len(groups)+len(barbers))
	for _, g := range groups {
		if g.fixedWorker != nil {
			ids = append(ids, *g.fixedWorker)
		}
	}
	for _, b := range barbers {
		if b != uuid.Nil {
			ids = append(ids, b)
		}
	}
	return h.calendar.FreeIntervalsBulk(ctx, ids, date)
}

// searchWindow is the union bounds of all involved free intervals, clipped
// to the optional requested window.
func (h *FindOptionsHandler) searchWindow(free map[uuid.UUID][]bookingdomain.Interval, q FindOptionsQuery) bookingdomain.Interval {
	var window bookingdomain.Interval
	first := true
	for _, list := range free {
		for _, iv := range list {
			if first {
				window = iv
				first = false
				continue
			}
			if iv.Start.Before(window.Start) {
				window.Start = iv.Start
			}
			if iv.End.After(window.End) {
				window.End = iv.End
			}
		}
	}
	if first {
		return bookingdomain.Interval{}
	}
	if q.WindowStart != nil && q.WindowStart.After(window.Start) {
		window.Start = *q.WindowStart
	}
	if q.WindowEnd != nil && q.WindowEnd.Before(window.End) {
		window.End = *q.WindowEnd
	}
	return window
}

// orderPermutations prefers barber-first sequences when some barber can
// start exactly at the cursor, otherwise barber-last. Keeping the barber
// busy from the cursor tends to minimize idle gaps for the bottleneck role.
func (h *FindOptionsHandler) orderPermutations(perms [][]int, groups []serviceGroup, barbers []uuid.UUID, free map[uuid.UUID][]bookingdomain.Interval, cursor time.Time) [][]int {
	barberIdx := -1
	for i, g := range groups {
		if g.fixedWorker == nil {
			barberIdx = i
			break
		}
	}
	if barberIdx < 0 || len(perms) <= 1 {
		return perms
	}

	barberCanStart := false
	blockEnd := cursor.Add(time.Duration(groups[barberIdx].totalMinutes) * time.Minute)
	for _, b := range barbers {
		if bookingdomain.ContainedInAny(free[b], bookingdomain.Interval{Start: cursor, End: blockEnd}) {
			barberCanStart = true
			break
		}
	}

	ordered := make([][]int, 0, len(perms))
	var rest [][]int
	for _, perm := range perms {
		startsWithBarber := perm[0] == barberIdx
		if startsWithBarber == barberCanStart {
			ordered = append(ordered, perm)
		} else {
			rest = append(rest, perm)
		}
	}
	return append(ordered, rest...)
}

// buildOption walks one permutation at one cursor with one barber
// candidate, placing contiguous blocks. Any block that does not fit in its
// worker's free time abandons the combination.
func buildOption(groups []serviceGroup, perm []int, barber uuid.UUID, free map[uuid.UUID][]bookingdomain.Interval, cursor time.Time) (bookingdomain.OptionPayload, bool) {
	blocks := make([]bookingdomain.OptionBlock, 0, len(perm))
	at := cursor
	for seq, gi := range perm {
		g := groups[gi]
		workerID := barber
		if g.fixedWorker != nil {
			workerID = *g.fixedWorker
		}
		end := at.Add(time.Duration(g.totalMinutes) * time.Minute)
		block := bookingdomain.Interval{Start: at, End: end}
		if !bookingdomain.ContainedInAny(free[workerID], block) {
			return bookingdomain.OptionPayload{}, false
		}
		serviceIDs := make([]uuid.UUID, 0, len(g.services))
		for _, s := range g.services {
			serviceIDs = append(serviceIDs, s.ID)
		}
		blocks = append(blocks, bookingdomain.OptionBlock{
			Sequence:   seq + 1,
			WorkerID:   workerID,
			Start:      at,
			End:        end,
			ServiceIDs: serviceIDs,
		})
		at = end
	}
	return bookingdomain.OptionPayload{
		Start:  cursor,
		End:    at,
		Blocks: blocks,
	}, true
}

func (h *FindOptionsHandler) toResult(payload bookingdomain.OptionPayload, groups []serviceGroup, perm []int, workerNames map[uuid.UUID]string) (OptionResult, error) {
	optionID, err := h.tokens.Issue(payload)
	if err != nil {
		return OptionResult{}, shareddomain.NewInternal(err)
	}

	blocks := make([]OptionBlockResult, 0, len(payload.Blocks))
	for i, b := range payload.Blocks {
		g := groups[perm[i]]
		svcs := make([]OptionService, 0, len(g.services))
		for _, s := range g.services {
			svcs = append(svcs, OptionService{
				ID:                  s.ID,
				Name:                s.Name,
				DurationMinutes:     s.DurationMinutes,
				BufferBeforeMinutes: s.BufferBeforeMinutes,
				BufferAfterMinutes:  s.BufferAfterMinutes,
			})
		}
		blocks = append(blocks, OptionBlockResult{
			Sequence:   b.Sequence,
			WorkerID:   b.WorkerID,
			WorkerName: workerNames[b.WorkerID],
			Start:      b.Start,
			End:        b.End,
			ServiceIDs: b.ServiceIDs,
			Services:   svcs,
		})
	}
	return OptionResult{
		OptionID:         optionID,
		AppointmentStart: payload.Start,
		AppointmentEnd:   payload.End,
		GapTotalMinutes:  payload.GapMinutes(),
		Blocks:           blocks,
	}, nil
}

func (h *FindOptionsHandler) workerNames(ctx context.Context, groups []serviceGroup, barbers []uuid.UUID) (map[uuid.UUID]string, error) {
	ids := make([]uuid.UUID, 0, len(groups)+len(barbers))
	for _, g := range groups {
		if g.fixedWorker != nil {
			ids = append(ids, *g.fixedWorker)
		}
	}
	for _, b := range barbers {
		if b != uuid.Nil {
			ids = append(ids, b)
		}
	}
	workers, err := h.staffing.FindWorkers(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(workers))
	for _, w := range workers {
		names[w.ID] = w.DisplayName
	}
	return names, nil
}

func hasBarberGroup(groups []serviceGroup) bool {
	for _, g := range groups {
		if g.fixedWorker == nil {
			return true
		}
	}
	return false
}

// permutations enumerates the orderings of n group indexes. n is at most
// three, so the output is at most six sequences.
func permutations(n int) [][]int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	var out [][]int
	var recurse func(current []int, remaining []int)
	recurse = func(current []int, remaining []int) {
		if len(remaining) == 0 {
			perm := make([]int, len(current))
			copy(perm, current)
			out = append(out, perm)
			return
		}
		for i, v := range remaining {
			rest := make([]int, 0, len(remaining)-1)
			rest = append(rest, remaining[:i]...)
			rest = append(rest, remaining[i+1:]...)
			recurse(append(current, v), rest)
		}
	}
	recurse(nil, idx)
	return out
}
