package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OptionBlock is one worker's contiguous slice of a proposed appointment,
// covering the services of a single assignment group.
type OptionBlock struct {
	Sequence   int         `json:"sequence"`
	WorkerID   uuid.UUID   `json:"worker_id"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	ServiceIDs []uuid.UUID `json:"service_ids"`
}

// OptionPayload is a fully resolved booking proposal. It is what the option
// token signs: reservation trusts the payload only after signature and TTL
// checks, then re-validates availability inside the reservation transaction.
type OptionPayload struct {
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
	Blocks []OptionBlock `json:"blocks"`
}

// WorkerIDs returns the distinct workers in block order.
func (p OptionPayload) WorkerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(p.Blocks))
	out := make([]uuid.UUID, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		if _, ok := seen[b.WorkerID]; ok {
			continue
		}
		seen[b.WorkerID] = struct{}{}
		out = append(out, b.WorkerID)
	}
	return out
}

// ServiceIDs returns every service across blocks, in block order.
func (p OptionPayload) ServiceIDs() []uuid.UUID {
	var out []uuid.UUID
	for _, b := range p.Blocks {
		out = append(out, b.ServiceIDs...)
	}
	return out
}

// GapMinutes sums the idle time between consecutive blocks. Generated
// options are contiguous, so this is zero until staff edits move blocks.
func (p OptionPayload) GapMinutes() int {
	total := 0
	for i := 1; i < len(p.Blocks); i++ {
		gap := p.Blocks[i].Start.Sub(p.Blocks[i-1].End)
		if gap > 0 {
			total += int(gap / time.Minute)
		}
	}
	return total
}

// Signature is a canonical identity for deduplication across permutations
// and barber candidates.
func (p OptionPayload) Signature() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%d|", p.Start.Unix(), p.End.Unix())
	for _, b := range p.Blocks {
		fmt.Fprintf(&sb, "%s,%d,%d", b.WorkerID, b.Start.Unix(), b.End.Unix())
		for _, sid := range b.ServiceIDs {
			sb.WriteByte(':')
			sb.WriteString(sid.String())
		}
		sb.WriteByte(';')
	}
	return sb.String()
}
