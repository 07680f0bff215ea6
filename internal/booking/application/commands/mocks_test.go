package commands

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/velvetcut/booking/internal/booking/domain"
	catalogdomain "github.com/velvetcut/booking/internal/catalog/domain"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	staffingdomain "github.com/velvetcut/booking/internal/staffing/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockUow is a test double for the unit of work, counting transaction
// outcomes.
type mockUow struct {
	begun      int
	committed  int
	rolledBack int
}

func (m *mockUow) Begin(ctx context.Context) (context.Context, error) {
	m.begun++
	return ctx, nil
}

func (m *mockUow) Commit(context.Context) error {
	m.committed++
	return nil
}

func (m *mockUow) Rollback(context.Context) error {
	m.rolledBack++
	return nil
}

// mockAppointmentRepo is a test double for domain.AppointmentRepository.
type mockAppointmentRepo struct {
	appointments map[uuid.UUID]*domain.Appointment

	created       []*domain.Appointment
	updated       int
	replaced      int
	deletedBlocks []uuid.UUID

	existsOverlap func(workerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appointments: make(map[uuid.UUID]*domain.Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, appt *domain.Appointment) error {
	m.created = append(m.created, appt)
	m.appointments[appt.ID()] = appt
	return nil
}

func (m *mockAppointmentRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	return m.appointments[id], nil
}

func (m *mockAppointmentRepo) UpdateLifecycle(_ context.Context, appt *domain.Appointment) error {
	m.updated++
	m.appointments[appt.ID()] = appt
	return nil
}

func (m *mockAppointmentRepo) ReplaceBlocks(_ context.Context, appt *domain.Appointment) error {
	m.replaced++
	return nil
}

func (m *mockAppointmentRepo) DeleteBlocks(_ context.Context, appointmentID uuid.UUID) error {
	m.deletedBlocks = append(m.deletedBlocks, appointmentID)
	return nil
}

func (m *mockAppointmentRepo) ExistsOverlap(_ context.Context, workerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	if m.existsOverlap != nil {
		return m.existsOverlap(workerID, start, end, excludeID)
	}
	return false, nil
}

func (m *mockAppointmentRepo) ListBlocksInRange(context.Context, []uuid.UUID, time.Time, time.Time) (map[uuid.UUID][]domain.Block, error) {
	return nil, nil
}

// mockCustomerRepo is a test double for domain.CustomerRepository.
type mockCustomerRepo struct {
	frequent     []*domain.Customer
	created      []*domain.Customer
	updatedNames int
}

func (m *mockCustomerRepo) Create(_ context.Context, c *domain.Customer) error {
	m.created = append(m.created, c)
	return nil
}

func (m *mockCustomerRepo) FindByID(context.Context, uuid.UUID) (*domain.Customer, error) {
	return nil, nil
}

func (m *mockCustomerRepo) FindFrequent(_ context.Context, phone string, birthDate time.Time) (*domain.Customer, error) {
	for _, c := range m.frequent {
		if c.Phone() == phone && c.BirthDate() != nil && c.BirthDate().Equal(birthDate) {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCustomerRepo) UpdateName(context.Context, *domain.Customer) error {
	m.updatedNames++
	return nil
}

// mockCatalogRepo is a test double for catalogdomain.Repository.
type mockCatalogRepo struct {
	services map[uuid.UUID]catalogdomain.Service
}

func (m *mockCatalogRepo) FindActiveByIDs(_ context.Context, ids []uuid.UUID) ([]catalogdomain.Service, error) {
	var out []catalogdomain.Service
	for _, id := range ids {
		if s, ok := m.services[id]; ok && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) FindCategories(context.Context, []uuid.UUID) (map[uuid.UUID]catalogdomain.ServiceCategory, error) {
	return map[uuid.UUID]catalogdomain.ServiceCategory{}, nil
}

// mockStaffingRepo records lock requests; calendar reads are unused here.
type mockStaffingRepo struct {
	locked  [][]uuid.UUID
	lockErr error
}

func (m *mockStaffingRepo) FindWorker(context.Context, uuid.UUID) (*staffingdomain.Worker, error) {
	return nil, nil
}

func (m *mockStaffingRepo) FindWorkers(context.Context, []uuid.UUID) ([]staffingdomain.Worker, error) {
	return nil, nil
}

func (m *mockStaffingRepo) ListActiveByRole(context.Context, staffingdomain.Role) ([]staffingdomain.Worker, error) {
	return nil, nil
}

func (m *mockStaffingRepo) ListRulesForDay(context.Context, uuid.UUID, int) ([]staffingdomain.ScheduleRule, error) {
	return nil, nil
}

func (m *mockStaffingRepo) ListBreaksForDay(context.Context, uuid.UUID, int) ([]staffingdomain.Break, error) {
	return nil, nil
}

func (m *mockStaffingRepo) ListExceptionsForDate(context.Context, uuid.UUID, time.Time) ([]staffingdomain.Exception, error) {
	return nil, nil
}

func (m *mockStaffingRepo) LockWorkers(_ context.Context, ids []uuid.UUID) error {
	m.locked = append(m.locked, ids)
	return m.lockErr
}

// mockOutboxRepo is a test double for outbox.Repository.
type mockOutboxRepo struct {
	saved []*outbox.Message
}

func (m *mockOutboxRepo) Save(_ context.Context, msg *outbox.Message) error {
	m.saved = append(m.saved, msg)
	return nil
}

func (m *mockOutboxRepo) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	m.saved = append(m.saved, msgs...)
	return nil
}

func (m *mockOutboxRepo) GetUnpublished(context.Context, int) ([]*outbox.Message, error) {
	return nil, nil
}

func (m *mockOutboxRepo) MarkPublished(context.Context, int64) error { return nil }

func (m *mockOutboxRepo) MarkFailed(context.Context, int64, string, time.Time) error { return nil }

func (m *mockOutboxRepo) DeleteOld(context.Context, int) (int64, error) { return 0, nil }

// mockAuditRepo is a test double for domain.AuditRepository.
type mockAuditRepo struct {
	entries   []domain.AuditEntry
	appendErr error
}

func (m *mockAuditRepo) Append(_ context.Context, entry domain.AuditEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListForAppointment(context.Context, uuid.UUID) ([]domain.AuditEntry, error) {
	return m.entries, nil
}

// stubVerifier is a test double for TokenVerifier.
type stubVerifier struct {
	payload domain.OptionPayload
	err     error
}

func (s stubVerifier) Verify(string) (domain.OptionPayload, error) {
	return s.payload, s.err
}

// stubGuard is a test double for ConsumedGuard.
type stubGuard struct {
	consumed bool
	err      error
	checks   int
	marked   []string
}

func (s *stubGuard) Consumed(context.Context, string) (bool, error) {
	s.checks++
	return s.consumed, s.err
}

func (s *stubGuard) MarkConsumed(_ context.Context, signature string) error {
	s.marked = append(s.marked, signature)
	return s.err
}

func testService(id uuid.UUID, name string, minutes int, price string) catalogdomain.Service {
	return catalogdomain.Service{
		ID:              id,
		CategoryID:      uuid.New(),
		Name:            name,
		DurationMinutes: minutes,
		Price:           decimal.RequireFromString(price),
		Active:          true,
		AssignmentType:  catalogdomain.AssignmentRoleBased,
	}
}

func singleBlockPayload(workerID, serviceID uuid.UUID, start time.Time, minutes int) domain.OptionPayload {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return domain.OptionPayload{
		Start: start,
		End:   end,
		Blocks: []domain.OptionBlock{
			{Sequence: 1, WorkerID: workerID, Start: start, End: end, ServiceIDs: []uuid.UUID{serviceID}},
		},
	}
}
