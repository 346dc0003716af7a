package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrUnknownProvider = errors.New("unknown provider")

// IntegrationRecord is the persisted connection state of one provider.
// Secrets are only ever stored encrypted and never serialized.
type IntegrationRecord struct {
	Model
	Provider    Provider                                   `json:"provider" gorm:"uniqueIndex;size:32;not null"`
	Status      Status                                     `json:"status" gorm:"size:16;not null;default:disconnected"`
	Mode        Mode                                       `json:"mode" gorm:"size:8;not null;default:demo"`
	MaskedToken *string                                    `json:"masked_token,omitempty"`
	Mapping     datatypes.JSONType[map[string]interface{}] `json:"mapping"`
	ConnectedAt *time.Time                                 `json:"connected_at,omitempty"`
	LastTestAt  *time.Time                                 `json:"last_test_at,omitempty"`

	// OAuth sub-record, only populated for providers with a handshake
	InstanceURL           string     `json:"instance_url,omitempty"`
	ClientID              string     `json:"client_id,omitempty"`
	EncryptedClientSecret string     `json:"-"`
	GrantType             GrantType  `json:"grant_type,omitempty" gorm:"size:32"`
	RedirectURI           string     `json:"redirect_uri,omitempty"`
	OAuthState            string     `json:"-" gorm:"column:oauth_state"`
	OAuthStateIssuedAt    *time.Time `json:"-" gorm:"column:oauth_state_issued_at"`
	EncryptedAccessToken  string     `json:"-"`
	EncryptedRefreshToken string     `json:"-"`
	TokenExpiry           *time.Time `json:"token_expiry,omitempty"`
}

// HasAccessToken reports whether a completed handshake left a token behind.
func (r *IntegrationRecord) HasAccessToken() bool {
	return r.EncryptedAccessToken != ""
}

// HasCredentials reports whether the OAuth client has been configured.
func (r *IntegrationRecord) HasCredentials() bool {
	return r.InstanceURL != "" && r.ClientID != ""
}

// MappingData returns the stored field mapping, never nil.
func (r *IntegrationRecord) MappingData() map[string]interface{} {
	m := r.Mapping.Data()
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

type OAuthCredentials struct {
	InstanceURL           string
	ClientID              string
	EncryptedClientSecret string
	GrantType             GrantType
	RedirectURI           string
}

type TokenSet struct {
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	Expiry                *time.Time
	MaskedToken           string
}

type IntegrationStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewIntegrationStore(db *gorm.DB, now func() time.Time) *IntegrationStore {
	if now == nil {
		now = time.Now
	}
	return &IntegrationStore{db: db, now: now}
}

func (s *IntegrationStore) timestamp() time.Time {
	return s.now().UTC()
}

// ensure loads the record for p, creating it in the default state on first access.
func (s *IntegrationStore) ensure(ctx context.Context, p Provider) (*IntegrationRecord, error) {
	if !p.Valid() {
		return nil, ErrUnknownProvider
	}

	var record IntegrationRecord
	q := s.db.WithContext(ctx).
		Where(IntegrationRecord{Provider: p}).
		Attrs(IntegrationRecord{Status: StatusDisconnected, Mode: ModeDemo}).
		FirstOrCreate(&record)
	if q.Error == nil {
		return &record, nil
	}

	// a concurrent first access may have won the unique index
	if err := s.db.WithContext(ctx).Where("provider = ?", p).First(&record).Error; err != nil {
		return nil, fmt.Errorf("load integration %s: %w", p, q.Error)
	}
	return &record, nil
}

func (s *IntegrationStore) update(ctx context.Context, p Provider, values map[string]interface{}) (*IntegrationRecord, error) {
	if _, err := s.ensure(ctx, p); err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).
		Model(&IntegrationRecord{}).
		Where("provider = ?", p).
		Updates(values)
	if q.Error != nil {
		return nil, fmt.Errorf("update integration %s: %w", p, q.Error)
	}

	return s.Get(ctx, p)
}

// List returns one record per provider in Providers order.
func (s *IntegrationStore) List(ctx context.Context) ([]IntegrationRecord, error) {
	records := make([]IntegrationRecord, 0, len(providers))
	for _, p := range providers {
		record, err := s.ensure(ctx, p)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}

func (s *IntegrationStore) Get(ctx context.Context, p Provider) (*IntegrationRecord, error) {
	return s.ensure(ctx, p)
}

// Connect marks p connected. Calling it again while connected refreshes the metadata.
func (s *IntegrationStore) Connect(ctx context.Context, p Provider, mode Mode, maskedToken *string) (*IntegrationRecord, error) {
	return s.update(ctx, p, map[string]interface{}{
		"status":       StatusConnected,
		"mode":         mode,
		"masked_token": maskedToken,
		"connected_at": s.timestamp(),
	})
}

// Disconnect clears connection state and tokens but keeps the mapping.
func (s *IntegrationStore) Disconnect(ctx context.Context, p Provider) (*IntegrationRecord, error) {
	return s.update(ctx, p, map[string]interface{}{
		"status":                  StatusDisconnected,
		"masked_token":            nil,
		"connected_at":            nil,
		"encrypted_access_token":  "",
		"encrypted_refresh_token": "",
		"token_expiry":            nil,
	})
}

// MarkTested records a connectivity check. It never fails the caller.
func (s *IntegrationStore) MarkTested(ctx context.Context, p Provider) {
	if !p.Valid() {
		return
	}
	if _, err := s.update(ctx, p, map[string]interface{}{"last_test_at": s.timestamp()}); err != nil {
		log.Printf("Warning: failed to record test for %s: %v", p, err)
	}
}

// SaveMapping replaces the whole mapping.
func (s *IntegrationStore) SaveMapping(ctx context.Context, p Provider, mapping map[string]interface{}) (*IntegrationRecord, error) {
	if mapping == nil {
		mapping = map[string]interface{}{}
	}
	return s.update(ctx, p, map[string]interface{}{
		"mapping": datatypes.NewJSONType(mapping),
	})
}

// SaveOAuthCredentials stores the OAuth client of p. Pointing p at another
// instance or client drops tokens and handshake state issued by the old one.
func (s *IntegrationStore) SaveOAuthCredentials(ctx context.Context, p Provider, creds OAuthCredentials) (*IntegrationRecord, error) {
	current, err := s.ensure(ctx, p)
	if err != nil {
		return nil, err
	}

	values := map[string]interface{}{
		"instance_url":            creds.InstanceURL,
		"client_id":               creds.ClientID,
		"encrypted_client_secret": creds.EncryptedClientSecret,
		"grant_type":              creds.GrantType,
		"redirect_uri":            creds.RedirectURI,
	}
	if current.InstanceURL != creds.InstanceURL || current.ClientID != creds.ClientID {
		values["encrypted_access_token"] = ""
		values["encrypted_refresh_token"] = ""
		values["token_expiry"] = nil
		values["oauth_state"] = ""
		values["oauth_state_issued_at"] = nil
		if current.Mode == ModeReal {
			values["status"] = StatusDisconnected
			values["mode"] = ModeDemo
			values["masked_token"] = nil
			values["connected_at"] = nil
		}
	}
	return s.update(ctx, p, values)
}

// SetOAuthState replaces the single in-flight handshake state of p.
func (s *IntegrationStore) SetOAuthState(ctx context.Context, p Provider, state string) error {
	_, err := s.update(ctx, p, map[string]interface{}{
		"oauth_state":           state,
		"oauth_state_issued_at": s.timestamp(),
	})
	return err
}

// ClearOAuthState removes the in-flight state if it still equals state.
// It reports whether this call was the one that cleared it.
func (s *IntegrationStore) ClearOAuthState(ctx context.Context, p Provider, state string) (bool, error) {
	if !p.Valid() {
		return false, ErrUnknownProvider
	}
	q := s.db.WithContext(ctx).
		Model(&IntegrationRecord{}).
		Where("provider = ? AND oauth_state = ?", p, state).
		Updates(map[string]interface{}{
			"oauth_state":           "",
			"oauth_state_issued_at": nil,
		})
	if q.Error != nil {
		return false, fmt.Errorf("clear oauth state %s: %w", p, q.Error)
	}
	return q.RowsAffected == 1, nil
}

// StoreTokens saves the result of a token exchange and marks p connected in real mode.
func (s *IntegrationStore) StoreTokens(ctx context.Context, p Provider, tokens TokenSet) (*IntegrationRecord, error) {
	if tokens.EncryptedAccessToken == "" {
		return nil, fmt.Errorf("store tokens %s: empty access token", p)
	}

	if tokens.Expiry != nil {
		expiry := tokens.Expiry.UTC()
		tokens.Expiry = &expiry
	}

	values := map[string]interface{}{
		"encrypted_access_token":  tokens.EncryptedAccessToken,
		"encrypted_refresh_token": tokens.EncryptedRefreshToken,
		"token_expiry":            tokens.Expiry,
		"status":                  StatusConnected,
		"mode":                    ModeReal,
		"connected_at":            s.timestamp(),
	}
	if tokens.MaskedToken != "" {
		values["masked_token"] = tokens.MaskedToken
	}
	return s.update(ctx, p, values)
}

// ExpireOAuthStates drops handshake states issued before cutoff.
func (s *IntegrationStore) ExpireOAuthStates(ctx context.Context, cutoff time.Time) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&IntegrationRecord{}).
		Where("oauth_state <> '' AND oauth_state_issued_at < ?", cutoff.UTC()).
		Updates(map[string]interface{}{
			"oauth_state":           "",
			"oauth_state_issued_at": nil,
		})
	if q.Error != nil {
		return 0, fmt.Errorf("expire oauth states: %w", q.Error)
	}
	return q.RowsAffected, nil
}

// ExpiringTokens lists connected records with a refresh token whose access token expires before cutoff.
func (s *IntegrationStore) ExpiringTokens(ctx context.Context, cutoff time.Time) ([]IntegrationRecord, error) {
	var records []IntegrationRecord
	q := s.db.WithContext(ctx).
		Where("status = ? AND encrypted_refresh_token <> '' AND token_expiry IS NOT NULL AND token_expiry < ?", StatusConnected, cutoff.UTC()).
		Find(&records)
	if q.Error != nil {
		return nil, fmt.Errorf("list expiring tokens: %w", q.Error)
	}
	return records, nil
}
