package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kittykibble/kibble-backend/pkg/db/models"
)

// CustomerStore is the customer persistence surface used by checkout.
type CustomerStore interface {
	WithTx(tx *gorm.DB) CustomerStore
	Upsert(ctx context.Context, customer *models.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

// CustomerRepository stores the contact profile captured at checkout.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// WithTx binds the repository to an open transaction.
func (r *CustomerRepository) WithTx(tx *gorm.DB) CustomerStore {
	if tx == nil {
		return r
	}
	return &CustomerRepository{db: tx}
}

// Upsert inserts the profile or overwrites name, email and phone.
func (r *CustomerRepository) Upsert(ctx context.Context, customer *models.Customer) error {
	customer.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "phone", "updated_at"}),
		}).
		Create(customer).Error
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
