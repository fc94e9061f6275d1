package domain

import (
	"errors"
	"strings"
)

// ErrUnknownProvider is returned when a provider name is not supported.
var ErrUnknownProvider = errors.New("unknown provider")

// Provider names a third-party identity and data service reached via OAuth2.
type Provider string

const (
	ProviderTodoist Provider = "todoist"
	ProviderGoogle  Provider = "google"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderTodoist, ProviderGoogle}

func (p Provider) String() string {
	return string(p)
}

// ParseProvider converts a route or config value into a Provider.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case ProviderTodoist, ProviderGoogle:
		return p, nil
	}
	return "", ErrUnknownProvider
}
