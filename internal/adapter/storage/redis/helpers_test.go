package redis

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(s *miniredis.Miniredis) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: s.Addr()})
}

func mustPort(t *testing.T, s *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return port
}
