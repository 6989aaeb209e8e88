package types

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
)

// OrderEventRow mirrors the order_events BigQuery schema. One row is written per
// delivered event; columns that an event type does not carry stay NULL.
type OrderEventRow struct {
	EventID       string            `bigquery:"event_id"`
	EventType     string            `bigquery:"event_type"`
	AggregateType string            `bigquery:"aggregate_type"`
	AggregateID   string            `bigquery:"aggregate_id"`
	Version       int64             `bigquery:"version"`
	OccurredAt    time.Time         `bigquery:"occurred_at"`
	IngestedAt    time.Time         `bigquery:"ingested_at"`
	OrderID       *string           `bigquery:"order_id"`
	OrderNumber   *string           `bigquery:"order_number"`
	Status        *string           `bigquery:"status"`
	PaymentStatus *string           `bigquery:"payment_status"`
	PaymentMethod *string           `bigquery:"payment_method"`
	Currency      *string           `bigquery:"currency"`
	TotalCents    *int64            `bigquery:"total_cents"`
	AmountCents   *int64            `bigquery:"amount_cents"`
	ItemCount     *int64            `bigquery:"item_count"`
	Reason        *string           `bigquery:"reason"`
	Payload       bigquery.NullJSON `bigquery:"payload"`
}

// OrderEventSchema is the column layout OrderEventRow streams into.
var OrderEventSchema = bigquery.Schema{
	{Name: "event_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: bigquery.StringFieldType, Required: true},
	{Name: "aggregate_type", Type: bigquery.StringFieldType, Required: true},
	{Name: "aggregate_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "version", Type: bigquery.IntegerFieldType, Required: true},
	{Name: "occurred_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "ingested_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "order_id", Type: bigquery.StringFieldType},
	{Name: "order_number", Type: bigquery.StringFieldType},
	{Name: "status", Type: bigquery.StringFieldType},
	{Name: "payment_status", Type: bigquery.StringFieldType},
	{Name: "payment_method", Type: bigquery.StringFieldType},
	{Name: "currency", Type: bigquery.StringFieldType},
	{Name: "total_cents", Type: bigquery.IntegerFieldType},
	{Name: "amount_cents", Type: bigquery.IntegerFieldType},
	{Name: "item_count", Type: bigquery.IntegerFieldType},
	{Name: "reason", Type: bigquery.StringFieldType},
	{Name: "payload", Type: bigquery.JSONFieldType},
}

// JSONColumn wraps a raw event body for the payload column. Empty bodies are
// written as NULL.
func JSONColumn(raw json.RawMessage) bigquery.NullJSON {
	if len(raw) == 0 {
		return bigquery.NullJSON{}
	}
	return bigquery.NullJSON{Valid: true, JSONVal: string(raw)}
}
