package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8087", cfg.AppPort)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.JWT.TTL())
	assert.Equal(t, PasswordSchemeBcrypt, cfg.Password.Scheme)
	assert.Equal(t, "expense_events", cfg.RabbitMQ.Queue)
	assert.Equal(t, 5*time.Minute, cfg.Redis.SummaryTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_NestedPrefixes(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("JWT_TTL_MINUTES", "5")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("WORKER_CONCURRENCY", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "HS512", cfg.JWT.Algorithm)
	assert.Equal(t, 5*time.Minute, cfg.JWT.TTL())
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.DB.SQLitePath)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 7, cfg.Worker.Concurrency)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "Missing secret",
			env:     map[string]string{},
			wantErr: "JWT_SECRET is required",
		},
		{
			name:    "Asymmetric algorithm",
			env:     map[string]string{"JWT_SECRET": "s", "JWT_ALGORITHM": "RS256"},
			wantErr: "unsupported JWT_ALGORITHM",
		},
		{
			name:    "Zero TTL",
			env:     map[string]string{"JWT_SECRET": "s", "JWT_TTL_MINUTES": "0"},
			wantErr: "JWT_TTL_MINUTES must be positive",
		},
		{
			name:    "Unknown driver",
			env:     map[string]string{"JWT_SECRET": "s", "DB_DRIVER": "mysql"},
			wantErr: "unsupported DB_DRIVER",
		},
		{
			name:    "Unknown password scheme",
			env:     map[string]string{"JWT_SECRET": "s", "PASSWORD_SCHEME": "md5"},
			wantErr: "unsupported PASSWORD_SCHEME",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDB_IgnoresJWTSection(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("PASSWORD_SCHEME", "argon2id")

	dbCfg, pwCfg, err := LoadDB()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, dbCfg.Driver)
	assert.Equal(t, PasswordSchemeArgon2id, pwCfg.Scheme)
}

func TestLoadWorker_IgnoresJWTSection(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_ALGORITHM", "none")
	t.Setenv("WORKER_CONCURRENCY", "2")
	t.Setenv("WORKER_MAX_RETRIES", "5")

	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, int32(5), cfg.Worker.MaxRetries)
	assert.Equal(t, "expense_events", cfg.RabbitMQ.Queue)
}

func TestLoadWorker_Invalid(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("WORKER_MAX_RETRIES", "-1")

	_, err := LoadWorker()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WORKER_CONCURRENCY")
	assert.Contains(t, err.Error(), "WORKER_MAX_RETRIES")
}

func TestDBConfig_DSN(t *testing.T) {
	pg := DBConfig{Driver: DriverPostgres, Host: "db", Port: "5433", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", pg.DSN())

	lite := DBConfig{Driver: DriverSQLite, SQLitePath: "/var/lib/exp.db"}
	assert.Equal(t, "file:/var/lib/exp.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", lite.DSN())
}
