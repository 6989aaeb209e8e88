package webhooks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/internal/reconciliation"
	pkgerrors "github.com/angelmondragon/orderbridge-backend/pkg/errors"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

func TestGuardMarksOnce(t *testing.T) {
	srv := miniredis.RunT(t)
	store := redis.FromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	guard, err := NewGuard(store, time.Hour, "card-webhook")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	srv.FastForward(2 * time.Hour)
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(ctx, "")
	assert.Error(t, err)
}

func TestNewGuardValidates(t *testing.T) {
	_, err := NewGuard(nil, time.Minute, "x")
	assert.Error(t, err)
}

type stubApplier struct {
	res *reconciliation.Result
	err error
}

func (s stubApplier) Apply(context.Context, reconciliation.Outcome) (*reconciliation.Result, error) {
	return s.res, s.err
}

func TestApplyFoldsHandledErrors(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard})
	ctx := context.Background()
	out := reconciliation.Outcome{Kind: reconciliation.OutcomeSucceeded, IntentID: "pi_1"}

	cases := []struct {
		name    string
		applier stubApplier
		want    Result
		wantErr bool
	}{
		{"applied", stubApplier{res: &reconciliation.Result{Applied: true}}, ResultApplied, false},
		{"noop", stubApplier{res: &reconciliation.Result{}}, ResultNoop, false},
		{"discrepancy", stubApplier{err: pkgerrors.New(pkgerrors.CodeDiscrepancy, "x")}, ResultDiscrepancy, false},
		{"unknown intent", stubApplier{err: pkgerrors.New(pkgerrors.CodeNotFound, "x")}, ResultIgnored, false},
		{"storage", stubApplier{err: pkgerrors.Wrap(pkgerrors.CodeStorage, errors.New("db down"), "x")}, ResultIgnored, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Apply(ctx, tc.applier, logg, out)
			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
