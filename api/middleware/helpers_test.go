package middleware

import (
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/orderbridge-backend/pkg/logger"
	"github.com/angelmondragon/orderbridge-backend/pkg/redis"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.FromRaw(goredis.NewClient(&goredis.Options{Addr: srv.Addr()})), srv
}
