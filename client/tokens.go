package client

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"time"

	"github.com/extrato-dev/extrato/redactor"
	cache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// TokenCache remembers provider bearer tokens between runs, so logins guarded by
// an SMS challenge don't repeat until the token expires. Tokens are kept in
// memory and optionally persisted to a file readable only by the current user.
type TokenCache struct {
	cache *cache.Cache
	path  string
}

type persistedToken struct {
	Token      redactor.String `json:"token"`
	Expiration int64           `json:"expiration"`
}

// NewTokenCache loads the token cache at path. An empty path disables persistence
func NewTokenCache(path string) (*TokenCache, error) {
	t := &TokenCache{path: path}
	if path == "" {
		t.cache = cache.New(cache.NoExpiration, 0)
		return t, nil
	}

	contents, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		t.cache = cache.New(cache.NoExpiration, 0)
		return t, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading token cache '%s'", path)
	}

	var persisted map[string]persistedToken
	if err := json.Unmarshal(contents, &persisted); err != nil {
		return nil, errors.Wrapf(err, "Error parsing token cache '%s'", path)
	}
	items := make(map[string]cache.Item, len(persisted))
	for key, token := range persisted {
		items[key] = cache.Item{Object: token.Token, Expiration: token.Expiration}
	}
	t.cache = cache.NewFrom(cache.NoExpiration, 0, items)
	return t, nil
}

// Token returns the cached token for the given provider, if present and unexpired
func (t *TokenCache) Token(provider string) (redactor.String, bool) {
	value, ok := t.cache.Get(provider)
	if !ok {
		return "", false
	}
	token, ok := value.(redactor.String)
	return token, ok
}

// SetToken caches the provider's token for the given time to live
func (t *TokenCache) SetToken(provider string, token redactor.String, ttl time.Duration) {
	t.cache.Set(provider, token, ttl)
}

// Save writes unexpired tokens back to the cache file. No-op without a path
func (t *TokenCache) Save() error {
	if t.path == "" {
		return nil
	}
	persisted := make(map[string]persistedToken)
	for key, item := range t.cache.Items() {
		token, ok := item.Object.(redactor.String)
		if !ok {
			continue
		}
		persisted[key] = persistedToken{Token: token, Expiration: item.Expiration}
	}

	file, err := os.OpenFile(t.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "Error opening token cache '%s'", t.path)
	}
	defer file.Close()
	// redactor.Encoder writes the real token values, so only ever write to disk
	return errors.Wrapf(redactor.NewEncoder(file).Encode(persisted), "Error writing token cache '%s'", t.path)
}
