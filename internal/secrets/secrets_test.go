package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sells-group/outreach-cli/internal/ai"
	"github.com/sells-group/outreach-cli/internal/kv"
)

func TestVault_KeyringRoundTrip(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	store := kv.NewMemory()
	v := NewVault(store)

	require.NoError(t, v.Set(ctx, ai.ProviderGemini, "g-key"))
	got, err := v.Lookup(ctx, ai.ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, "g-key", got)

	// Written to the keychain, not the store.
	vals, err := store.Get(ctx, "secret:gemini")
	require.NoError(t, err)
	assert.Empty(t, vals)

	require.NoError(t, v.Delete(ctx, ai.ProviderGemini))
	_, err = v.Lookup(ctx, ai.ProviderGemini)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestVault_FallsBackToStore(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	defer keyring.MockInit()

	ctx := context.Background()
	store := kv.NewMemory()
	v := NewVault(store)

	require.NoError(t, v.Set(ctx, LinkedInCookie, "li_at=abc"))
	vals, err := store.Get(ctx, "secret:linkedin_cookie")
	require.NoError(t, err)
	assert.Equal(t, "li_at=abc", string(vals["secret:linkedin_cookie"]))

	got, err := v.Lookup(ctx, LinkedInCookie)
	require.NoError(t, err)
	assert.Equal(t, "li_at=abc", got)

	require.NoError(t, v.Delete(ctx, LinkedInCookie))
	_, err = v.Lookup(ctx, LinkedInCookie)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestVault_NoStoreAndNoKeyring(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	defer keyring.MockInit()

	v := NewVault(nil)
	assert.Error(t, v.Set(context.Background(), ai.ProviderOpenAI, "k"))
	_, err := v.Lookup(context.Background(), ai.ProviderOpenAI)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestVault_SetRejectsEmpty(t *testing.T) {
	keyring.MockInit()
	v := NewVault(kv.NewMemory())
	assert.Error(t, v.Set(context.Background(), "", "x"))
	assert.Error(t, v.Set(context.Background(), ai.ProviderGemini, "  "))
}

func TestVault_ApplyAI(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	v := NewVault(kv.NewMemory())
	require.NoError(t, v.Set(ctx, ai.ProviderGemini, "stored-gemini"))
	require.NoError(t, v.Set(ctx, ai.ProviderOpenAI, "stored-openai"))

	cfg := ai.Config{OpenAI: ai.ProviderConfig{APIKey: "from-config"}}
	require.NoError(t, v.ApplyAI(ctx, &cfg))

	assert.Equal(t, "stored-gemini", cfg.Gemini.APIKey)
	assert.Equal(t, "from-config", cfg.OpenAI.APIKey)
	assert.Empty(t, cfg.Anthropic.APIKey)
}

func TestVault_Resolve(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	v := NewVault(kv.NewMemory())

	got, err := v.Resolve(ctx, LinkedInCookie, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, v.Set(ctx, LinkedInCookie, "li_at=stored"))
	got, err = v.Resolve(ctx, LinkedInCookie, "")
	require.NoError(t, err)
	assert.Equal(t, "li_at=stored", got)

	got, err = v.Resolve(ctx, LinkedInCookie, "li_at=flag")
	require.NoError(t, err)
	assert.Equal(t, "li_at=flag", got)
}

func TestKnownAndMask(t *testing.T) {
	assert.True(t, Known("gemini"))
	assert.True(t, Known("linkedin_cookie"))
	assert.False(t, Known("notion"))

	assert.Equal(t, "*****6789", Mask("123456789"))
	assert.Equal(t, "***", Mask("abc"))
}
