package orders

import (
	"github.com/angelmondragon/orderbridge-backend/internal/lifecycle"
	"github.com/angelmondragon/orderbridge-backend/pkg/db/models"
	"github.com/angelmondragon/orderbridge-backend/pkg/enums"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox"
	"github.com/angelmondragon/orderbridge-backend/pkg/outbox/payloads"
)

const eventVersion = 1

// EventTypeFor names the outbox event a trigger produces.
func EventTypeFor(trigger lifecycle.Trigger) enums.OutboxEventType {
	switch trigger {
	case lifecycle.TriggerPaymentSucceeded:
		return enums.EventOrderPaid
	case lifecycle.TriggerPaymentFailed:
		return enums.EventOrderPaymentFailed
	case lifecycle.TriggerCancel:
		return enums.EventOrderCancelled
	case lifecycle.TriggerRefundFull, lifecycle.TriggerRefundPartial:
		return enums.EventOrderRefunded
	default:
		return enums.EventOrderFulfillmentChanged
	}
}

// BaseEvent fills the common order fields; from is the pre-transition state.
func BaseEvent(order *models.Order, from lifecycle.State, trigger lifecycle.Trigger) payloads.OrderEvent {
	return payloads.OrderEvent{
		OrderID:               order.ID,
		OrderNumber:           order.OrderNumber,
		Status:                order.Status,
		PaymentStatus:         order.PaymentStatus,
		PreviousStatus:        from.Status,
		PreviousPaymentStatus: from.Payment,
		PaymentMethod:         order.PaymentMethod,
		Trigger:               string(trigger),
		Total:                 order.Total,
		Currency:              order.Currency,
	}
}

// NewOrderEvent wraps data in a DomainEvent for the order aggregate.
func NewOrderEvent(order *models.Order, eventType enums.OutboxEventType, data any) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       eventVersion,
		Data:          data,
	}
}
