package gokusto

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAuthorityHost = "https://login.microsoftonline.com"
	imdsTokenEndpoint    = "http://169.254.169.254/metadata/identity/oauth2/token"
	imdsAPIVersion       = "2018-02-01"

	// Tokens are refreshed this long before their reported expiry.
	tokenExpiryGrace = 2 * time.Minute
)

// authProvider obtains a bearer token for the configured identity. All
// implementations cache the token until close to expiry.
type authProvider interface {
	Token(ctx context.Context) (string, error)
}

// newAuthProvider maps a Config's identity mode onto a token source. Modes
// that need an interactive flow (user prompt, device code, az cli) are not
// acquired by this package; callers plug those in through an
// azcore.TokenCredential.
func newAuthProvider(cfg *Config, client *http.Client) (authProvider, error) {
	resource := strings.TrimSuffix(cfg.ServiceURI, "/")
	switch cfg.AuthMode {
	case AuthApplicationToken:
		return &staticTokenProvider{token: cfg.ApplicationToken}, nil
	case AuthTokenCallback:
		cb := cfg.TokenCallback
		return newCachedTokenProvider(func(ctx context.Context) (string, time.Time, error) {
			tok, err := cb(resource)
			if err != nil {
				return "", time.Time{}, err
			}
			return tok, tokenExpiry(tok), nil
		}), nil
	case AuthTokenCredential:
		cred := cfg.TokenCredential
		return newCachedTokenProvider(func(ctx context.Context) (string, time.Time, error) {
			tk, err := cred.GetToken(ctx, policy.TokenRequestOptions{
				Scopes: []string{resource + "/.default"},
			})
			if err != nil {
				return "", time.Time{}, err
			}
			return tk.Token, tk.ExpiresOn, nil
		}), nil
	case AuthApplicationKey:
		p := &clientCredentialsProvider{
			client:       client,
			tokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", defaultAuthorityHost, cfg.AuthorityID),
			clientID:     cfg.ApplicationClientID,
			clientSecret: cfg.ApplicationKey,
			scope:        resource + "/.default",
		}
		return newCachedTokenProvider(p.fetch), nil
	case AuthManagedIdentity:
		p := &imdsProvider{client: client, resource: resource, clientID: cfg.MSIUserID}
		return newCachedTokenProvider(p.fetch), nil
	}
	return nil, &KustoError{
		Number:      ErrCodeTokenAcquisition,
		Message:     "identity mode %v requires an external credential; supply one with NewConfigWithTokenCredential",
		MessageArgs: []interface{}{cfg.AuthMode},
	}
}

type staticTokenProvider struct {
	token string
}

func (p *staticTokenProvider) Token(context.Context) (string, error) { return p.token, nil }

// cachedTokenProvider wraps a fetch function with an expiry-aware cache.
type cachedTokenProvider struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	fetch   func(ctx context.Context) (string, time.Time, error)
}

func newCachedTokenProvider(fetch func(ctx context.Context) (string, time.Time, error)) *cachedTokenProvider {
	return &cachedTokenProvider{fetch: fetch}
}

func (p *cachedTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && (p.expires.IsZero() || time.Until(p.expires) > tokenExpiryGrace) {
		return p.token, nil
	}
	tok, expires, err := p.fetch(ctx)
	if err != nil {
		return "", &KustoError{
			Number:      ErrCodeTokenAcquisition,
			Message:     "failed to obtain bearer token: %v",
			MessageArgs: []interface{}{err},
		}
	}
	p.token, p.expires = tok, expires
	return tok, nil
}

// tokenExpiry recovers the expiry of an opaque bearer token from its exp
// claim when it happens to be a JWT. Zero means unknown, which disables
// refresh until the service rejects the token.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// clientCredentialsProvider runs the OAuth2 client credentials flow against
// AAD for app-key identities.
type clientCredentialsProvider struct {
	client       *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
}

type aadTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p *clientCredentialsProvider) fetch(ctx context.Context) (string, time.Time, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("scope", p.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer res.Body.Close()

	var tr aadTokenResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&tr); err != nil {
		return "", time.Time{}, err
	}
	if res.StatusCode != http.StatusOK || tr.AccessToken == "" {
		msg := tr.ErrorDescription
		if msg == "" {
			msg = tr.Error
		}
		return "", time.Time{}, fmt.Errorf("token endpoint returned %d: %s", res.StatusCode, msg)
	}
	return tr.AccessToken, time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
}

// imdsProvider acquires tokens from the Azure instance metadata service for
// managed identities.
type imdsProvider struct {
	client   *http.Client
	resource string
	clientID string // user-assigned identity, empty for system-assigned
}

func (p *imdsProvider) fetch(ctx context.Context) (string, time.Time, error) {
	q := url.Values{}
	q.Set("api-version", imdsAPIVersion)
	q.Set("resource", p.resource)
	if p.clientID != "" {
		q.Set("client_id", p.clientID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imdsTokenEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Metadata", "true")

	res, err := p.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer res.Body.Close()

	var tr aadTokenResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&tr); err != nil {
		return "", time.Time{}, err
	}
	if res.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("instance metadata service returned %d", res.StatusCode)
	}
	return tr.AccessToken, time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
}
