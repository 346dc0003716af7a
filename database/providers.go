package database

// Provider is one of the fixed external systems an integration can point at.
type Provider string

const (
	ProviderJira       Provider = "jira"
	ProviderServiceNow Provider = "servicenow"
	ProviderOkta       Provider = "okta"
	ProviderGoogle     Provider = "google"
)

var providers = [...]Provider{
	ProviderJira,
	ProviderServiceNow,
	ProviderOkta,
	ProviderGoogle,
}

// Providers returns every known provider in display order.
func Providers() []Provider {
	out := make([]Provider, len(providers))
	copy(out, providers[:])
	return out
}

// ParseProvider maps a raw identifier onto the closed provider set.
func ParseProvider(raw string) (Provider, bool) {
	for _, p := range providers {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

func (p Provider) Valid() bool {
	_, ok := ParseProvider(string(p))
	return ok
}

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
)

type Mode string

const (
	ModeDemo Mode = "demo"
	ModeReal Mode = "real"
)

// ParseMode defaults to demo for an empty value.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case "", ModeDemo:
		return ModeDemo, true
	case ModeReal:
		return ModeReal, true
	}
	return "", false
}

type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantClientCredentials GrantType = "client_credentials"
)

// ParseGrantType defaults to authorization_code for an empty value.
func ParseGrantType(raw string) (GrantType, bool) {
	switch GrantType(raw) {
	case "", GrantAuthorizationCode:
		return GrantAuthorizationCode, true
	case GrantClientCredentials:
		return GrantClientCredentials, true
	}
	return "", false
}
