package integrations

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"helpdesk/database"
	"helpdesk/secrets"
)

const (
	DefaultStateTTL = 10 * time.Minute
	stateBytes      = 32

	atlassianAuthURL  = "https://auth.atlassian.com/authorize"
	atlassianTokenURL = "https://auth.atlassian.com/oauth/token"
)

// OAuthSettings are the operator supplied OAuth values. Empty values are reported
// as configuration errors when a handshake needs them.
type OAuthSettings struct {
	JiraClientID          string
	JiraClientSecret      string
	JiraRedirectURI       string
	JiraAuthURL           string
	JiraTokenURL          string
	ServiceNowRedirectURI string
	StateTTL              time.Duration
	HTTPClient            *http.Client
}

type StartResult struct {
	AuthorizeURL string `json:"authorizeUrl"`
	State        string `json:"state"`
}

type CredentialsInput struct {
	InstanceURL  string `json:"instance_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	RedirectURI  string `json:"redirect_uri"`
}

// OAuthHelper runs the authorize/callback handshake and the direct token grants.
type OAuthHelper struct {
	registry *Registry
	store    *database.IntegrationStore
	audit    *database.AuditLog
	cipher   *secrets.Cipher
	settings OAuthSettings
	now      func() time.Time
	random   io.Reader
}

func NewOAuthHelper(
	registry *Registry,
	store *database.IntegrationStore,
	audit *database.AuditLog,
	cipher *secrets.Cipher,
	settings OAuthSettings,
	now func() time.Time,
) *OAuthHelper {
	if now == nil {
		now = time.Now
	}
	if settings.StateTTL <= 0 {
		settings.StateTTL = DefaultStateTTL
	}
	if settings.JiraAuthURL == "" {
		settings.JiraAuthURL = atlassianAuthURL
	}
	if settings.JiraTokenURL == "" {
		settings.JiraTokenURL = atlassianTokenURL
	}
	if settings.HTTPClient == nil {
		settings.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &OAuthHelper{
		registry: registry,
		store:    store,
		audit:    audit,
		cipher:   cipher,
		settings: settings,
		now:      now,
		random:   rand.Reader,
	}
}

func (h *OAuthHelper) record(ctx context.Context, p database.Provider, action string, details interface{}) {
	h.audit.Append(ctx, database.AuditEvent{
		Provider: p,
		Action:   action,
		Actor:    actorFrom(ctx),
		Details:  details,
	})
}

func (h *OAuthHelper) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, h.settings.HTTPClient)
}

func (h *OAuthHelper) resolve(raw string) (Connector, error) {
	conn, err := h.registry.Resolve(raw)
	if err != nil {
		return nil, err
	}
	if !conn.Capabilities().OAuth {
		return nil, ValidationError(fmt.Sprintf("OAuth is not supported for %s", conn.Provider()))
	}
	return conn, nil
}

func serviceNowEndpoint(instanceURL string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  instanceURL + "/oauth_auth.do",
		TokenURL: instanceURL + "/oauth_token.do",
	}
}

// config builds the OAuth client of p. needRedirect is false for flows without a browser.
func (h *OAuthHelper) config(p database.Provider, record *database.IntegrationRecord, needRedirect bool) (*oauth2.Config, error) {
	switch p {
	case database.ProviderJira:
		s := h.settings
		if s.JiraClientID == "" || s.JiraClientSecret == "" || (needRedirect && s.JiraRedirectURI == "") {
			return nil, ConfigurationError("Jira OAuth is not configured. Set JIRA_CLIENT_ID, JIRA_CLIENT_SECRET and JIRA_REDIRECT_URI for the server.")
		}
		return &oauth2.Config{
			ClientID:     s.JiraClientID,
			ClientSecret: s.JiraClientSecret,
			RedirectURL:  s.JiraRedirectURI,
			Scopes:       []string{"read:jira-work", "write:jira-work", "offline_access"},
			Endpoint:     oauth2.Endpoint{AuthURL: s.JiraAuthURL, TokenURL: s.JiraTokenURL},
		}, nil

	case database.ProviderServiceNow:
		if !record.HasCredentials() {
			return nil, PreconditionError("Save ServiceNow credentials (instance_url, client_id) before starting OAuth")
		}
		secret, err := h.clientSecret(record)
		if err != nil {
			return nil, err
		}
		redirect := record.RedirectURI
		if redirect == "" {
			redirect = h.settings.ServiceNowRedirectURI
		}
		if needRedirect && redirect == "" {
			return nil, ConfigurationError("ServiceNow redirect URI is not configured. Set SERVICENOW_REDIRECT_URI or save redirect_uri with the credentials.")
		}
		return &oauth2.Config{
			ClientID:     record.ClientID,
			ClientSecret: secret,
			RedirectURL:  redirect,
			Endpoint:     serviceNowEndpoint(record.InstanceURL),
		}, nil
	}
	return nil, ValidationError(fmt.Sprintf("OAuth is not supported for %s", p))
}

func (h *OAuthHelper) clientSecret(record *database.IntegrationRecord) (string, error) {
	if record.EncryptedClientSecret == "" {
		return "", nil
	}
	return h.cipher.Decrypt(record.EncryptedClientSecret)
}

func (h *OAuthHelper) newState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := io.ReadFull(h.random, buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SaveCredentials stores the OAuth client of a real-connect provider, encrypting the secret.
func (h *OAuthHelper) SaveCredentials(ctx context.Context, raw string, input CredentialsInput) (*database.IntegrationRecord, error) {
	conn, err := h.resolve(raw)
	if err != nil {
		return nil, err
	}
	p := conn.Provider()
	if !conn.Capabilities().RealConnect {
		return nil, ValidationError(fmt.Sprintf("%s OAuth client is configured on the server, not through the API", p))
	}

	instanceURL := strings.TrimRight(strings.TrimSpace(input.InstanceURL), "/")
	u, err := url.Parse(instanceURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return nil, ValidationError("instance_url must be an absolute http(s) URL")
	}
	clientID := strings.TrimSpace(input.ClientID)
	if clientID == "" {
		return nil, ValidationError("client_id is required")
	}
	if input.ClientSecret == "" {
		return nil, ValidationError("client_secret is required")
	}
	grant, ok := database.ParseGrantType(input.GrantType)
	if !ok {
		return nil, ValidationError("grant_type must be authorization_code or client_credentials")
	}
	redirect := strings.TrimSpace(input.RedirectURI)
	if redirect != "" {
		if r, err := url.Parse(redirect); err != nil || r.Scheme == "" || r.Host == "" {
			return nil, ValidationError("redirect_uri must be an absolute URL")
		}
	}

	encrypted, err := h.cipher.Encrypt(input.ClientSecret)
	if err != nil {
		return nil, err
	}

	record, err := h.store.SaveOAuthCredentials(ctx, p, database.OAuthCredentials{
		InstanceURL:           instanceURL,
		ClientID:              clientID,
		EncryptedClientSecret: encrypted,
		GrantType:             grant,
		RedirectURI:           redirect,
	})
	if err != nil {
		return nil, err
	}
	h.record(ctx, p, "oauth.credentials_saved", map[string]interface{}{
		"instance_url": instanceURL,
		"client_id":    clientID,
		"grant_type":   grant,
	})
	return record, nil
}

// Start issues a new CSRF state, replacing any in-flight handshake, and returns the authorize URL.
func (h *OAuthHelper) Start(ctx context.Context, raw string) (*StartResult, error) {
	conn, err := h.resolve(raw)
	if err != nil {
		return nil, err
	}
	p := conn.Provider()

	record, err := h.store.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if conn.Capabilities().ClientCredentials && record.GrantType == database.GrantClientCredentials {
		return nil, PreconditionError(fmt.Sprintf("%s is configured for the client_credentials grant, use POST /api/v1/oauth/%s/token instead", p, p))
	}

	cfg, err := h.config(p, record, true)
	if err != nil {
		return nil, err
	}

	state, err := h.newState()
	if err != nil {
		return nil, err
	}
	if err := h.store.SetOAuthState(ctx, p, state); err != nil {
		return nil, err
	}

	var opts []oauth2.AuthCodeOption
	if p == database.ProviderJira {
		opts = append(opts,
			oauth2.SetAuthURLParam("audience", "api.atlassian.com"),
			oauth2.SetAuthURLParam("prompt", "consent"),
		)
	}

	h.record(ctx, p, "oauth.started", map[string]interface{}{"redirect_uri": cfg.RedirectURL})
	return &StartResult{AuthorizeURL: cfg.AuthCodeURL(state, opts...), State: state}, nil
}

func (h *OAuthHelper) validState(record *database.IntegrationRecord, state string) bool {
	if record.OAuthState == "" || record.OAuthStateIssuedAt == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(record.OAuthState), []byte(state)) != 1 {
		return false
	}
	return h.now().Sub(*record.OAuthStateIssuedAt) <= h.settings.StateTTL
}

// Complete checks the returned state, exchanges code for a token and marks p connected.
func (h *OAuthHelper) Complete(ctx context.Context, raw string, code string, state string) (*database.IntegrationRecord, error) {
	conn, err := h.resolve(raw)
	if err != nil {
		return nil, err
	}
	p := conn.Provider()

	if code == "" {
		return nil, ValidationError("Missing authorization code")
	}
	if state == "" {
		return nil, ValidationError("Missing state parameter")
	}

	record, err := h.store.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if !h.validState(record, state) {
		return nil, ValidationError("Invalid or expired OAuth state")
	}
	cleared, err := h.store.ClearOAuthState(ctx, p, record.OAuthState)
	if err != nil {
		return nil, err
	}
	if !cleared {
		return nil, ValidationError("Invalid or expired OAuth state")
	}

	cfg, err := h.config(p, record, true)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(h.clientContext(ctx), code)
	if err != nil {
		return nil, h.upstreamFailure(ctx, p, "Token exchange failed", err)
	}

	record, err = h.persist(ctx, p, token, "")
	if err != nil {
		return nil, err
	}
	h.record(ctx, p, "oauth.completed", map[string]interface{}{"grant_type": database.GrantAuthorizationCode})
	return record, nil
}

// ClientCredentials exchanges the stored client id and secret directly for a token.
func (h *OAuthHelper) ClientCredentials(ctx context.Context, raw string) (*database.IntegrationRecord, error) {
	conn, err := h.resolve(raw)
	if err != nil {
		return nil, err
	}
	p := conn.Provider()
	if !conn.Capabilities().ClientCredentials {
		return nil, PreconditionError(fmt.Sprintf("%s does not support the client_credentials grant", p))
	}

	record, err := h.store.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if !record.HasCredentials() {
		return nil, PreconditionError(fmt.Sprintf("Save %s credentials (instance_url, client_id) before requesting a token", p))
	}
	if record.GrantType != database.GrantClientCredentials {
		return nil, PreconditionError(fmt.Sprintf("%s is configured for the authorization_code grant, use POST /api/v1/oauth/%s/start instead", p, p))
	}

	secret, err := h.clientSecret(record)
	if err != nil {
		return nil, err
	}
	cc := clientcredentials.Config{
		ClientID:     record.ClientID,
		ClientSecret: secret,
		TokenURL:     serviceNowEndpoint(record.InstanceURL).TokenURL,
	}
	token, err := cc.Token(h.clientContext(ctx))
	if err != nil {
		return nil, h.upstreamFailure(ctx, p, "Client credentials exchange failed", err)
	}

	record, err = h.persist(ctx, p, token, "")
	if err != nil {
		return nil, err
	}
	h.record(ctx, p, "oauth.completed", map[string]interface{}{"grant_type": database.GrantClientCredentials})
	return record, nil
}

// Refresh trades the stored refresh token of p for a new access token.
func (h *OAuthHelper) Refresh(ctx context.Context, p database.Provider) (*database.IntegrationRecord, error) {
	record, err := h.store.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if record.EncryptedRefreshToken == "" {
		return nil, PreconditionError(fmt.Sprintf("%s has no refresh token", p))
	}

	cfg, err := h.config(p, record, false)
	if err != nil {
		return nil, err
	}
	refresh, err := h.cipher.Decrypt(record.EncryptedRefreshToken)
	if err != nil {
		return nil, err
	}

	token, err := cfg.TokenSource(h.clientContext(ctx), &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return nil, h.upstreamFailure(ctx, p, "Token refresh failed", err)
	}

	record, err = h.persist(ctx, p, token, record.EncryptedRefreshToken)
	if err != nil {
		return nil, err
	}
	h.record(ctx, p, "oauth.refreshed", nil)
	return record, nil
}

// persist encrypts and stores token. keepRefresh is reused when the provider omits a new refresh token.
func (h *OAuthHelper) persist(ctx context.Context, p database.Provider, token *oauth2.Token, keepRefresh string) (*database.IntegrationRecord, error) {
	if token == nil || token.AccessToken == "" {
		return nil, UpstreamError("Token endpoint returned no access token", nil)
	}

	access, err := h.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh := keepRefresh
	if token.RefreshToken != "" {
		if refresh, err = h.cipher.Encrypt(token.RefreshToken); err != nil {
			return nil, err
		}
	}
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry
		expiry = &e
	}

	return h.store.StoreTokens(ctx, p, database.TokenSet{
		EncryptedAccessToken:  access,
		EncryptedRefreshToken: refresh,
		Expiry:                expiry,
		MaskedToken:           secrets.MaskSecret(token.AccessToken),
	})
}

func (h *OAuthHelper) upstreamFailure(ctx context.Context, p database.Provider, prefix string, err error) error {
	message := upstreamMessage(err)
	h.record(ctx, p, "oauth.failed", map[string]interface{}{"error": message})
	return UpstreamError(fmt.Sprintf("%s: %s", prefix, message), err)
}

// upstreamMessage extracts the provider's own error text.
func upstreamMessage(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch {
		case re.ErrorDescription != "":
			return re.ErrorDescription
		case re.ErrorCode != "":
			return re.ErrorCode
		case len(re.Body) > 0:
			return strings.TrimSpace(string(re.Body))
		}
		if re.Response != nil {
			return re.Response.Status
		}
	}
	return err.Error()
}
