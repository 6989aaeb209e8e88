package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:       http.StatusBadRequest,
		CodeUnauthorized:     http.StatusUnauthorized,
		CodeNotFound:         http.StatusNotFound,
		CodeConflict:         http.StatusConflict,
		CodeStateConflict:    http.StatusUnprocessableEntity,
		CodeRateLimit:        http.StatusTooManyRequests,
		CodeDependency:       http.StatusServiceUnavailable,
		CodeUpstreamPayment:  http.StatusBadGateway,
		CodeSignatureInvalid: http.StatusBadRequest,
		CodeDiscrepancy:      http.StatusConflict,
		CodeStorage:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, MetadataFor(code).HTTPStatus, code)
	}

	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
	assert.False(t, MetadataFor(CodeStorage).ExposeMessage)
	assert.True(t, MetadataFor(CodeDiscrepancy).DetailsAllowed)
}

func TestEveryCodeHasMetadata(t *testing.T) {
	for code, meta := range metadataByCode {
		assert.NotZero(t, meta.HTTPStatus, code)
		assert.NotEmpty(t, meta.PublicMessage, code)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeStorage, cause, "insert order")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "STORAGE_ERROR: insert order: boom", wrapped.Error())
	assert.Equal(t, "NOT_FOUND: order", New(CodeNotFound, "order").Error())
	assert.Equal(t, "NOT_FOUND: order", Wrap(CodeNotFound, nil, "order").Error())
}

func TestDetails(t *testing.T) {
	err := New(CodeConflict, "order is shipped").WithDetails(map[string]any{"current_status": "shipped"})
	assert.Equal(t, map[string]any{"current_status": "shipped"}, err.Details())

	var nilErr *Error
	assert.Nil(t, nilErr.WithDetails("x"))
	assert.Equal(t, CodeInternal, nilErr.Code())
}

func TestCodeOfAndIs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(CodeSignatureInvalid, "bad sig"))
	assert.Equal(t, CodeSignatureInvalid, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeSignatureInvalid))
	assert.False(t, Is(wrapped, CodeValidation))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.Nil(t, As(nil))
}

func TestLogFieldsPostgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key", TableName: "orders"}
	fields := LogFields(Wrap(CodeStorage, pgErr, "insert order"))

	assert.Equal(t, CodeStorage, fields["error_code"])
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "orders_order_number_key", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_detail")
	require.Len(t, fields["error_chain"], 2)

	fields = LogFields(fmt.Errorf("goose: %w", &pq.Error{Code: "42P01", Table: "products"}))
	assert.Equal(t, "42P01", fields["pg_code"])
	assert.Equal(t, CodeInternal, fields["error_code"])

	assert.Nil(t, LogFields(nil))
}
