// Package credential supplies the Criminal IP API key to the lookup engine.
package credential

import (
	"os"
	"strings"
)

// EnvAPIKey is the environment variable read by Env.
const EnvAPIKey = "CRIMINAL_IP_API_KEY"

// Provider returns the decrypted API key. An empty key with a nil error means
// no key is configured.
type Provider interface {
	APIKey() (string, error)
}

// Static is a fixed key, typically from a command-line flag.
type Static string

// APIKey implements Provider.
func (s Static) APIKey() (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// Env reads the key from an environment variable (EnvAPIKey when Name is empty).
type Env struct {
	Name string
}

// APIKey implements Provider.
func (e Env) APIKey() (string, error) {
	name := e.Name
	if name == "" {
		name = EnvAPIKey
	}
	return strings.TrimSpace(os.Getenv(name)), nil
}

// Chain returns the first non-empty key. Errors stop the search.
type Chain []Provider

// APIKey implements Provider.
func (c Chain) APIKey() (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		key, err := p.APIKey()
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}
	return "", nil
}

// Mask hides all but the last four characters of key for display.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
