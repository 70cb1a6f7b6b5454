package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.Equal(t, EnvDevelopment, cfg.Env)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, "http://localhost:3000", cfg.PublicBaseURL)
	require.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	require.Contains(t, cfg.Uploads.AllowedMIMEs, "image/jpeg")
	require.Equal(t, 15*time.Second, cfg.Suggestions.Timeout)
	require.Equal(t, 10*time.Second, cfg.SMTP.Timeout)
	require.Equal(t, time.Minute, cfg.Summary.CacheTTL)
	require.Empty(t, cfg.Catalog.ApproverEmails)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("PUBLIC_BASE_URL", "https://ptw.example.com/")
	v.Set("APPROVER_EMAILS", " a@example.com , ,b@example.com")
	v.Set("SUGGESTIONS_TIMEOUT", "not-a-duration")
	v.Set("UPLOADS_MAX_FILE_SIZE", 0)
	v.Set("SMTP_TIMEOUT", "3s")

	cfg := fromViper(v)
	require.Equal(t, "https://ptw.example.com", cfg.PublicBaseURL)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Catalog.ApproverEmails)
	require.Equal(t, 15*time.Second, cfg.Suggestions.Timeout)
	require.Equal(t, int64(5*1024*1024), cfg.Uploads.MaxFileSizeBytes)
	require.Equal(t, 3*time.Second, cfg.SMTP.Timeout)
}
