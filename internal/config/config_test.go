package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable New reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DB_ADAPTER", "SQLITE_FILE", "SECRET_KEY", "JWT_SECRET", "LOG_LEVEL", "ENV",
		"CORS_ALLOWED_ORIGINS", "MIGRATIONS_DIR", "DATABASE_URL", "POSTGRES_DSN",
		"POSTGRES_HOST", "DB_HOST", "POSTGRES_PORT", "DB_PORT", "POSTGRES_USER", "DB_USER",
		"POSTGRES_PASSWORD", "DB_PASSWORD", "POSTGRES_DB", "DB_NAME", "POSTGRES_SSLMODE", "DB_SSLMODE",
		"ACCESS_TOKEN_EXPIRE_MINUTES", "BCRYPT_COST", "RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(k, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ADAPTER", "memory")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 30*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, 60, c.RateLimitPerMinute)
	assert.Equal(t, "change-me", c.SecretKey)
	assert.Empty(t, c.CORSAllowedOrigins)
}

func TestNew_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ADAPTER", "sqlite")
	t.Setenv("SQLITE_FILE", "/tmp/x.db")
	t.Setenv("SECRET_KEY", "s3cr3t")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", c.SecretKey)
	assert.Equal(t, 5*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 4, c.BcryptCost)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSAllowedOrigins)
}

func TestNew_JWTSecretAlias(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("JWT_SECRET", "legacy")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "legacy", c.SecretKey)
}

func TestNew_Postgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "budget")

	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, "host=db port=5432 user=u dbname=budget sslmode=disable password='p'", c.PostgresDSN)

	t.Setenv("DATABASE_URL", "postgres://x@y/z")
	c, err = New()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x@y/z", c.PostgresDSN)
}

func TestBuildPostgresDSN_QuotesPassword(t *testing.T) {
	c := &Config{PostgresHost: "db", PostgresUser: "u", PostgresDB: "budget", PostgresPassword: `p w'\x`}
	dsn, err := c.BuildPostgresDSN()
	require.NoError(t, err)
	assert.Equal(t, `host=db port=5432 user=u dbname=budget sslmode=disable password='p w\'\\x'`, dsn)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown adapter", map[string]string{"DB_ADAPTER": "mongo"}},
		{"bad port", map[string]string{"DB_ADAPTER": "memory", "PORT": "http"}},
		{"bad ttl", map[string]string{"DB_ADAPTER": "memory", "ACCESS_TOKEN_EXPIRE_MINUTES": "abc"}},
		{"zero ttl", map[string]string{"DB_ADAPTER": "memory", "ACCESS_TOKEN_EXPIRE_MINUTES": "0"}},
		{"cost too high", map[string]string{"DB_ADAPTER": "memory", "BCRYPT_COST": "40"}},
		{"default secret in prod", map[string]string{"DB_ADAPTER": "memory", "ENV": "production"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			require.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even to "".
	for _, k := range []string{"DB_ADAPTER", "SECRET_KEY"} {
		require.NoError(t, os.Unsetenv(k))
	}
	t.Cleanup(func() {
		os.Unsetenv("DB_ADAPTER")
		os.Unsetenv("SECRET_KEY")
	})

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DB_ADAPTER=memory\nSECRET_KEY=from-file\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", c.DBAdapter)
	assert.Equal(t, "from-file", c.SecretKey)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_ADAPTER", "memory")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
