package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/exam-api/internal/config"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RedisConfig
		wantErr bool
		addrs   []string
	}{
		{name: "single from addr", cfg: config.RedisConfig{Addr: "a:6379"}, addrs: []string{"a:6379"}},
		{name: "single keeps first addr", cfg: config.RedisConfig{Mode: "single", Addrs: []string{"a:1", "b:2"}}, addrs: []string{"a:1"}},
		{name: "cluster", cfg: config.RedisConfig{Mode: "cluster", Addrs: []string{"a:1", "b:2"}}, addrs: []string{"a:1", "b:2"}},
		{name: "sentinel without master", cfg: config.RedisConfig{Mode: "sentinel", Addrs: []string{"a:1"}}, wantErr: true},
		{name: "no addresses", cfg: config.RedisConfig{}, wantErr: true},
		{name: "unknown mode", cfg: config.RedisConfig{Mode: "ring", Addr: "a:1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _, err := redisOptions(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addrs, opts.Addrs)
		})
	}
}

func TestNewUniversalRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewUniversalRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
