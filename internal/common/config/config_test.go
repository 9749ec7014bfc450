package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseVars() map[string]string {
	return map[string]string{
		"JWT_SECRET": "0123456789abcdef0123",
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(baseVars())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.Tickets.MonthlyQuota)
	assert.Equal(t, 100, cfg.Tickets.BatchSize)
	assert.Equal(t, UniquenessTicketPrize, cfg.Draw.WinnerUniqueness)
	assert.Equal(t, 30*time.Second, cfg.Draw.LockTTL)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Draw.EnforceSchedule)
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=sorteo sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadFromRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"quota above field capacity", "TICKET_MONTHLY_QUOTA", "10001"},
		{"zero quota", "TICKET_MONTHLY_QUOTA", "0"},
		{"unknown uniqueness", "WINNER_UNIQUENESS", "per_raffle"},
		{"unknown driver", "DB_DRIVER", "mysql"},
		{"short secret", "JWT_SECRET", "short"},
		{"stream without redis", "PAYMENT_STREAM_ENABLED", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := baseVars()
			vars[tt.key] = tt.val
			_, err := LoadFrom(vars)
			assert.Error(t, err)
		})
	}
}

func TestLoadFromRequiresSecret(t *testing.T) {
	_, err := LoadFrom(map[string]string{})
	assert.Error(t, err)
}

func TestLoadFromOverrides(t *testing.T) {
	vars := baseVars()
	vars["TICKET_MONTHLY_QUOTA"] = "10000"
	vars["WINNER_UNIQUENESS"] = UniquenessPrizePosition
	vars["DB_DRIVER"] = DriverSQLite
	vars["ORIGIN"] = "http://a.test,http://b.test"

	cfg, err := LoadFrom(vars)
	require.NoError(t, err)

	assert.Equal(t, 10000, cfg.Tickets.MonthlyQuota)
	assert.Equal(t, UniquenessPrizePosition, cfg.Draw.WinnerUniqueness)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.Origins)
}
