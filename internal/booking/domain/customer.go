package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	shareddomain "github.com/velvetcut/booking/internal/shared/domain"
)

// CustomerType distinguishes walk-in customers from registered regulars.
type CustomerType string

const (
	CustomerCasual   CustomerType = "CASUAL"
	CustomerFrequent CustomerType = "FREQUENT"
)

// Customer is the booking party. CASUAL customers are created on the fly at
// reservation time from a name; FREQUENT customers are pre-registered and
// matched by phone and birth date. FREQUENT records are never auto-created.
type Customer struct {
	shareddomain.BaseEntity
	customerType CustomerType
	fullName     string
	phone        string
	birthDate    *time.Time
}

// NewCasualCustomer creates a walk-in customer record.
func NewCasualCustomer(fullName string) (*Customer, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, shareddomain.NewValidation("customer name is required")
	}
	return &Customer{
		BaseEntity:   shareddomain.NewBaseEntity(),
		customerType: CustomerCasual,
		fullName:     fullName,
	}, nil
}

// RehydrateCustomer reconstructs a customer from storage.
func RehydrateCustomer(
	id uuid.UUID,
	customerType CustomerType,
	fullName, phone string,
	birthDate *time.Time,
	createdAt, updatedAt time.Time,
) *Customer {
	return &Customer{
		BaseEntity:   shareddomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		customerType: customerType,
		fullName:     fullName,
		phone:        phone,
		birthDate:    birthDate,
	}
}

func (c *Customer) Type() CustomerType    { return c.customerType }
func (c *Customer) FullName() string      { return c.fullName }
func (c *Customer) Phone() string         { return c.phone }
func (c *Customer) BirthDate() *time.Time { return c.birthDate }
func (c *Customer) IsFrequent() bool      { return c.customerType == CustomerFrequent }

// SyncName updates the stored name when a frequent customer books under a
// corrected spelling. Reports whether anything changed.
func (c *Customer) SyncName(fullName string) bool {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || fullName == c.fullName {
		return false
	}
	c.fullName = fullName
	c.Touch()
	return true
}
