package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "GLASSBOX_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "GLASSBOX_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "GLASSBOX_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "GLASSBOX_TEST_DUR_UNSET", setVal: nil, fallback: time.Second, want: time.Second},
		{name: "parses valid duration", key: "GLASSBOX_TEST_DUR_VALID", setVal: strPtr("250ms"), fallback: 0, want: 250 * time.Millisecond},
		{name: "errors on garbage", key: "GLASSBOX_TEST_DUR_BAD", setVal: strPtr("soon"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("GLASSBOX_TEST_LIST", "a, b ,,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("GLASSBOX_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("GLASSBOX_TEST_LIST_UNSET", []string{"x"}))
}

// ---------------------------------------------------------------------------
// Load and validate tests
// ---------------------------------------------------------------------------

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "glassbox.db", cfg.Database.Path)
	assert.True(t, cfg.Database.Seed)
	assert.Equal(t, 1000, cfg.Debug.TruncateLimit)
	assert.Equal(t, 10*time.Millisecond, cfg.Debug.SlowCall)
	assert.Equal(t, 50*time.Millisecond, cfg.Debug.SlowQuery)
	assert.Equal(t, 20, cfg.Debug.HistoryCapacity)
	assert.Equal(t, "glassbox_session", cfg.Session.CookieName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GLASSBOX_SERVER_ADDR", ":9999")
	t.Setenv("GLASSBOX_DEBUG_SLOW_QUERY", "75ms")
	t.Setenv("GLASSBOX_DEBUG_HISTORY_CAPACITY", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 75*time.Millisecond, cfg.Debug.SlowQuery)
	assert.Equal(t, 5, cfg.Debug.HistoryCapacity)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "zero truncate limit", key: "GLASSBOX_DEBUG_TRUNCATE_LIMIT", val: "0"},
		{name: "zero history capacity", key: "GLASSBOX_DEBUG_HISTORY_CAPACITY", val: "0"},
		{name: "negative slow call", key: "GLASSBOX_DEBUG_SLOW_CALL", val: "-1ms"},
		{name: "zero rate burst", key: "GLASSBOX_RATE_LIMIT_BURST", val: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
