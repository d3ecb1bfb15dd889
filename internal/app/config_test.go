package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, SequencePostgres, cfg.SequenceBackend)
	assert.Equal(t, 30*24*time.Hour, cfg.InvoicePaymentTerms)
	assert.Equal(t, "@hourly", cfg.OverdueSweepCron)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SEQUENCE_BACKEND", " Redis ")
	t.Setenv("INVOICE_PAYMENT_TERMS", "336h")
	t.Setenv("COMPANY_NAME", "Acme Studio")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, SequenceRedis, cfg.SequenceBackend)
	assert.Equal(t, 14*24*time.Hour, cfg.InvoicePaymentTerms)
	assert.Equal(t, "Acme Studio", cfg.CompanyName)
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown backend": {"SEQUENCE_BACKEND": "etcd"},
		"zero terms":      {"INVOICE_PAYMENT_TERMS": "0s"},
		"half font pair":  {"PDF_FONT_REGULAR": "/fonts/regular.ttf"},
		"bad duration":    {"APP_READ_TIMEOUT": "soon"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestParseTestMode(t *testing.T) {
	for v, want := range map[string]bool{"1": true, "true": true, "": false, "0": false, "yes": false} {
		assert.Equal(t, want, parseTestMode(v), v)
	}
}
