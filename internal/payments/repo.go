package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/money"
)

// IntentRepository persists payment_intents rows.
type IntentRepository interface {
	WithTx(tx *gorm.DB) IntentRepository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id string) (*models.PaymentIntent, error)
	FindByIDForUpdate(ctx context.Context, id string) (*models.PaymentIntent, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error)
	UpdateStatus(ctx context.Context, id string, status enums.IntentStatus, errMsg *string) error
	SetOrderID(ctx context.Context, id string, orderID uuid.UUID) error
}

// RefundRepository persists refunds rows.
type RefundRepository interface {
	WithTx(tx *gorm.DB) RefundRepository
	Create(ctx context.Context, refund *models.Refund) error
	FindByID(ctx context.Context, id string) (*models.Refund, error)
	// SumActiveByIntent totals every refund that has not failed.
	SumActiveByIntent(ctx context.Context, intentID string) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, id string, status enums.RefundStatus) error
}

type intentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) WithTx(tx *gorm.DB) IntentRepository {
	if tx == nil {
		return r
	}
	return &intentRepository{db: tx}
}

func (r *intentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *intentRepository) FindByID(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// FindByOrderID returns the most recent intent linked to the order.
func (r *intentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *intentRepository) UpdateStatus(ctx context.Context, id string, status enums.IntentStatus, errMsg *string) error {
	updates := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if errMsg != nil {
		updates["error_message"] = *errMsg
	}
	res := r.db.WithContext(ctx).Model(&models.PaymentIntent{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *intentRepository) SetOrderID(ctx context.Context, id string, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ?", id).
		Updates(map[string]any{"order_id": orderID, "updated_at": time.Now().UTC()}).Error
}

type refundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) WithTx(tx *gorm.DB) RefundRepository {
	if tx == nil {
		return r
	}
	return &refundRepository{db: tx}
}

func (r *refundRepository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *refundRepository) FindByID(ctx context.Context, id string) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *refundRepository) SumActiveByIntent(ctx context.Context, intentID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payment_intent_id = ? AND status <> ?", intentID, enums.RefundStatusFailed).
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return money.Round(total.Decimal), nil
}

func (r *refundRepository) UpdateStatus(ctx context.Context, id string, status enums.RefundStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Refund{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
