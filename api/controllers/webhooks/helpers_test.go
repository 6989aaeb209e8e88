package webhooks

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderbridge-backend/internal/webhooks"
	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard})
}

func newGuard(t *testing.T, scope string) *webhooks.Guard {
	t.Helper()
	srv := miniredis.RunT(t)
	store := redis.FromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	guard, err := webhooks.NewGuard(store, time.Hour, scope)
	require.NoError(t, err)
	return guard
}

type recordingMetrics struct {
	mu      sync.Mutex
	results []string
}

func (m *recordingMetrics) IncWebhook(provider, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, provider+":"+result)
}
