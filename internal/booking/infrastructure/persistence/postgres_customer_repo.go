package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetcut/booking/internal/booking/domain"
	sharedpersistence "github.com/velvetcut/booking/internal/shared/infrastructure/persistence"
)

type PostgresCustomerRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCustomerRepository(pool *pgxpool.Pool) *PostgresCustomerRepository {
	return &PostgresCustomerRepository{pool: pool}
}

const selectCustomerColumns = `id, customer_type, full_name, phone, birth_date, created_at, updated_at`

func (r *PostgresCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	exec := sharedpersistence.Executor(ctx, r.pool)

	var phone *string
	if c.Phone() != "" {
		p := c.Phone()
		phone = &p
	}
	_, err := exec.Exec(ctx, `
		INSERT INTO customers (id, customer_type, full_name, phone, birth_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID(), c.Type(), c.FullName(), phone, c.BirthDate(), c.CreatedAt(), c.UpdatedAt())
	if err != nil {
		return mapConstraint(err, "create customer")
	}
	return nil
}

func (r *PostgresCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	row := sharedpersistence.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+selectCustomerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

// FindFrequent matches a registered customer by the identity triple. It
// never creates records; a miss returns nil.
func (r *PostgresCustomerRepository) FindFrequent(ctx context.Context, phone string, birthDate time.Time) (*domain.Customer, error) {
	row := sharedpersistence.Executor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+selectCustomerColumns+`
		 FROM customers
		 WHERE customer_type = $1 AND phone = $2 AND birth_date = $3::date`,
		domain.CustomerFrequent, phone, birthDate)
	return scanCustomer(row)
}

func (r *PostgresCustomerRepository) UpdateName(ctx context.Context, c *domain.Customer) error {
	exec := sharedpersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx,
		`UPDATE customers SET full_name = $2, updated_at = $3 WHERE id = $1`,
		c.ID(), c.FullName(), c.UpdatedAt())
	if err != nil {
		return fmt.Errorf("update customer name: %w", err)
	}
	return nil
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var (
		id                   uuid.UUID
		customerType         domain.CustomerType
		fullName             string
		phone                *string
		birthDate            *time.Time
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &customerType, &fullName, &phone, &birthDate, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	phoneStr := ""
	if phone != nil {
		phoneStr = *phone
	}
	return domain.RehydrateCustomer(id, customerType, fullName, phoneStr, birthDate, createdAt, updatedAt), nil
}
