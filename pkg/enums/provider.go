package enums

import (
	"fmt"
	"strings"
)

// Provider identifies the mobile-money network that debits the payer.
type Provider string

const (
	ProviderAirtel Provider = "airtel"
	ProviderTNM    Provider = "tnm"
)

var validProviders = []Provider{
	ProviderAirtel,
	ProviderTNM,
}

// String implements fmt.Stringer.
func (p Provider) String() string {
	return string(p)
}

// DisplayName returns the customer-facing wallet name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderAirtel:
		return "Airtel Money"
	case ProviderTNM:
		return "TNM Mpamba"
	default:
		return strings.ToUpper(string(p))
	}
}

// IsValid reports whether the provider is supported.
func (p Provider) IsValid() bool {
	for _, candidate := range validProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProvider converts raw input into a Provider. Input is case-insensitive.
func ParseProvider(value string) (Provider, error) {
	normalized := Provider(strings.ToLower(strings.TrimSpace(value)))
	for _, candidate := range validProviders {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider %q", value)
}
