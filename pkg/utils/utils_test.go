package utils

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFrom_File(t *testing.T) {
	for _, key := range []string{"PORT", "ATTEMPT_TIMEOUT", "REDIS_ADDR", "DB_NAME", "DEFAULT_CURRENCY"} {
		t.Setenv(key, "")
	}

	path := filepath.Join(t.TempDir(), ".env")
	content := "PORT=9090\nATTEMPT_TIMEOUT=5s\nREDIS_ADDR=localhost:6379\nDB_NAME=payments\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 5*time.Second, cfg.Payment.AttemptTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "payments", cfg.Database.Name)
	assert.Equal(t, "USD", cfg.Payment.DefaultCurrency)
	assert.Equal(t, "payment_events", cfg.Redis.Stream)
	assert.Equal(t, 10*time.Minute, cfg.Sweeper.StaleAfter)
}

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ATTEMPT_TIMEOUT", "")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 15*time.Second, cfg.Payment.AttemptTimeout)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
}

func TestLoadConfigFrom_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=9090\n"), 0o600))
	t.Setenv("PORT", "7070")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.App.Port)
}

func TestLoadConfigFrom_RejectsNonPositiveAttemptTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	for _, value := range []string{"0s", "-5s"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("ATTEMPT_TIMEOUT", "")
			require.NoError(t, os.WriteFile(path, []byte("ATTEMPT_TIMEOUT="+value+"\n"), 0o600))

			cfg, err := LoadConfigFrom(path)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "ATTEMPT_TIMEOUT")
		})
	}
}

type sampleRequest struct {
	TenantID string          `json:"tenant_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency string          `json:"currency" validate:"omitempty,iso4217"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	errs := ValidateStruct(sampleRequest{
		TenantID: "tenant-1",
		Amount:   decimal.RequireFromString("10.00"),
		Currency: "IDR",
	})
	assert.Empty(t, errs)

	errs = ValidateStruct(sampleRequest{
		Amount:   decimal.RequireFromString("-5.00"),
		Currency: "XXQ",
	})
	require.Len(t, errs, 3)
	assert.Equal(t, "This field is required", errs["tenant_id"])
	assert.Equal(t, "Must be greater than 0", errs["amount"])
	assert.Equal(t, "Must be a valid ISO 4217 currency code", errs["currency"])

	assert.Equal(t,
		"amount: Must be greater than 0; currency: Must be a valid ISO 4217 currency code; tenant_id: This field is required",
		FormatValidationErrors(errs),
	)
}

func TestGenerateTransactionID(t *testing.T) {
	t.Parallel()

	id := GenerateTransactionID()
	assert.Regexp(t, regexp.MustCompile(`^PAY-\d{8}-[0-9A-F]{32}$`), id)
	assert.NotEqual(t, id, GenerateTransactionID())
}

func TestActorContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "system", GetActorFromContext(context.Background()))
	ctx := SetActorContext(context.Background(), "ops@tenant")
	assert.Equal(t, "ops@tenant", GetActorFromContext(ctx))
}

func TestParseQueryValues(t *testing.T) {
	assert.Equal(t, 25, ParseInt("25", 50))
	assert.Equal(t, 50, ParseInt("", 50))
	assert.Equal(t, 50, ParseInt("abc", 50))

	d, err := ParseDuration("", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	d, err = ParseDuration("7d", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, d)

	d, err = ParseDuration("90m", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = ParseDuration("soon", time.Hour)
	assert.Error(t, err)
}
