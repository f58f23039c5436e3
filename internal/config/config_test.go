package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "APP_ENV", "CORS_ALLOWED_ORIGINS",
		"POEM_PROVIDER", "POEM_MODEL", "POEM_BASE_URL", "POEM_TIMEOUT", "POEM_API_KEY",
		"GOOGLE_API_KEY", "OPENAI_API_KEY", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "ARK_MODEL",
		"SPEECH_APP_ID", "SPEECH_ACCESS_TOKEN", "SPEECH_API_KEY", "SPEECH_TTS_SPEED", "SPEECH_TTS_VOLUME", "SPEECH_TIMEOUT",
		"POEM_API_URL", "POEM_CLIENT_TIMEOUT", "POEM_PLAYER_CMD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ProviderGemini, cfg.Poem.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Poem.Model)
	assert.Equal(t, DefaultPoemTimeout, cfg.Poem.Timeout)
	assert.False(t, cfg.Poem.Enabled())
	assert.Equal(t, "NOT_SET", cfg.Poem.KeyPrefix())
	assert.False(t, cfg.Speech.Enabled)
	assert.Equal(t, 30, cfg.Speech.Timeout)
	assert.Equal(t, 45*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "ffplay", cfg.Client.PlayerCommand[0])
}

func TestLoadGeminiKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "AIzaSyExampleKey")
	t.Setenv("POEM_TIMEOUT", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Poem.Enabled())
	assert.Equal(t, "AIzaSy...", cfg.Poem.KeyPrefix())
	assert.Equal(t, 12*time.Second, cfg.Poem.Timeout)
}

func TestLoadOpenAIProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("POEM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("POEM_TIMEOUT", "1500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Poem.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Poem.BaseURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Poem.Timeout)
	assert.True(t, cfg.Poem.Enabled())
}

func TestLoadArkRequiresModel(t *testing.T) {
	clearEnv(t)
	t.Setenv("POEM_PROVIDER", "ark")
	t.Setenv("ARK_ACCESS_KEY", "ak")
	t.Setenv("ARK_SECRET_KEY", "sk")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Poem.Enabled())

	t.Setenv("ARK_MODEL", "doubao-pro")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Poem.Enabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"provider": {"POEM_PROVIDER", "bard"},
		"timeout":  {"POEM_TIMEOUT", "soon"},
		"speed":    {"SPEECH_TTS_SPEED", "fast"},
		"port":     {"PORT", "50 00"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadServerAddrPassthrough(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:8080")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}
