// Package secrets stores API keys and the LinkedIn session cookie in the OS
// keychain, falling back to the kv store on hosts without one.
package secrets

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/ai"
	"github.com/sells-group/outreach-cli/internal/kv"
)

// KeyringService groups the app's entries in the OS keychain.
const KeyringService = "outreach-cli"

// Secret names.
const (
	LinkedInCookie = "linkedin_cookie"
)

// ErrNotFound is returned by Lookup when neither backend holds the name.
var ErrNotFound = eris.New("secrets: not found")

// Names lists every secret the CLI knows how to store.
func Names() []string {
	return []string{
		ai.ProviderGemini,
		ai.ProviderOpenAI,
		ai.ProviderAnthropic,
		ai.ProviderPerplexity,
		LinkedInCookie,
	}
}

// Known reports whether name is one of Names.
func Known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Vault resolves secrets from the keychain first, then the kv store.
type Vault struct {
	store kv.Store
}

// NewVault returns a Vault. store may be nil, which disables the fallback.
func NewVault(store kv.Store) *Vault {
	return &Vault{store: store}
}

func storeKey(name string) string { return "secret:" + name }

// Lookup returns the stored value for name.
func (v *Vault) Lookup(ctx context.Context, name string) (string, error) {
	val, err := keyring.Get(KeyringService, name)
	if err == nil && strings.TrimSpace(val) != "" {
		return val, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		zap.L().Debug("secrets: keyring unavailable", zap.String("name", name), zap.Error(err))
	}

	if v.store == nil {
		return "", eris.Wrapf(ErrNotFound, "name %s", name)
	}
	vals, err := v.store.Get(ctx, storeKey(name))
	if err != nil {
		return "", eris.Wrap(err, "secrets: read store")
	}
	if b, ok := vals[storeKey(name)]; ok && len(b) > 0 {
		return string(b), nil
	}
	return "", eris.Wrapf(ErrNotFound, "name %s", name)
}

// Set stores value in the keychain, or in the kv store when the keychain
// rejects the write.
func (v *Vault) Set(ctx context.Context, name, value string) error {
	if strings.TrimSpace(name) == "" {
		return eris.New("secrets: name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return eris.New("secrets: value is empty")
	}

	err := keyring.Set(KeyringService, name, value)
	if err == nil {
		return nil
	}
	if v.store == nil {
		return eris.Wrap(err, "secrets: keyring set")
	}
	zap.L().Warn("secrets: keyring unavailable, storing in local store",
		zap.String("name", name),
		zap.Error(err),
	)
	if err := v.store.Set(ctx, map[string][]byte{storeKey(name): []byte(value)}); err != nil {
		return eris.Wrap(err, "secrets: write store")
	}
	return nil
}

// Delete removes name from both backends. Missing entries are not an error.
func (v *Vault) Delete(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return eris.New("secrets: name is empty")
	}
	if err := keyring.Delete(KeyringService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		zap.L().Debug("secrets: keyring delete", zap.String("name", name), zap.Error(err))
	}
	if v.store == nil {
		return nil
	}
	return eris.Wrap(v.store.Remove(ctx, storeKey(name)), "secrets: delete from store")
}

// ApplyAI fills every provider whose APIKey is empty from the vault.
// Configured values always win.
func (v *Vault) ApplyAI(ctx context.Context, cfg *ai.Config) error {
	slots := map[string]*ai.ProviderConfig{
		ai.ProviderGemini:     &cfg.Gemini,
		ai.ProviderOpenAI:     &cfg.OpenAI,
		ai.ProviderAnthropic:  &cfg.Anthropic,
		ai.ProviderPerplexity: &cfg.Perplexity,
	}
	for name, pc := range slots {
		if strings.TrimSpace(pc.APIKey) != "" {
			continue
		}
		key, err := v.Lookup(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		pc.APIKey = key
	}
	return nil
}

// Resolve returns current when set, otherwise the stored value for name, or
// "" when nothing is stored.
func (v *Vault) Resolve(ctx context.Context, name, current string) (string, error) {
	if strings.TrimSpace(current) != "" {
		return current, nil
	}
	val, err := v.Lookup(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return val, err
}

// Mask hides all but the last four characters of value.
func Mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}
