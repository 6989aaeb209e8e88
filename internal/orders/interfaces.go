package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderbridge-backend/internal/lifecycle"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders and order_items tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, int64, error)
	// UpdateIfState applies updates only while the row is still in from. The
	// returned bool is false when another writer moved the order first.
	UpdateIfState(ctx context.Context, id uuid.UUID, from lifecycle.State, updates map[string]any) (bool, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	ListAbandoned(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}
