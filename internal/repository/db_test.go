package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLConfig_ForcesParseTime(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{"no params", "user:pass@tcp(db:3306)/bottle"},
		{"parseTime off", "user:pass@tcp(db:3306)/bottle?parseTime=false&loc=Local"},
		{"other params kept", "user:pass@tcp(db:3306)/bottle?timeout=5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := mysqlConfig(tt.dsn)
			require.NoError(t, err)
			assert.True(t, cfg.ParseTime)
			assert.Equal(t, time.UTC, cfg.Loc)
			assert.Equal(t, "bottle", cfg.DBName)
			assert.Equal(t, "db:3306", cfg.Addr)
		})
	}
}

func TestMySQLConfig_KeepsTimeout(t *testing.T) {
	cfg, err := mysqlConfig("user:pass@tcp(db:3306)/bottle?timeout=5s")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestMySQLConfig_InvalidDSN(t *testing.T) {
	_, err := mysqlConfig("not a dsn")
	assert.Error(t, err)
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	_, err := NewDB(context.Background(), "postgres", "whatever")
	assert.ErrorContains(t, err, "unsupported database driver")
}
