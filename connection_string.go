package gokusto

import (
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// AuthMode is the identity mode a Config authenticates with. Exactly one
// mode's required fields may be present in a connection string.
type AuthMode int

// Identity modes.
const (
	// AuthDefault uses the ambient credential chain (environment, managed
	// identity, developer tooling), prompting the user when interactive.
	AuthDefault AuthMode = iota
	AuthUserPassword
	AuthApplicationKey
	AuthApplicationCertificate
	AuthManagedIdentity
	AuthApplicationToken
	AuthTokenCallback
	AuthAzureCLI
	AuthInteractive
	AuthTokenCredential
)

func (m AuthMode) String() string {
	switch m {
	case AuthDefault:
		return "default"
	case AuthUserPassword:
		return "user-password"
	case AuthApplicationKey:
		return "app-key"
	case AuthApplicationCertificate:
		return "app-certificate"
	case AuthManagedIdentity:
		return "managed-identity"
	case AuthApplicationToken:
		return "token"
	case AuthTokenCallback:
		return "token-callback"
	case AuthAzureCLI:
		return "az-cli"
	case AuthInteractive:
		return "interactive"
	case AuthTokenCredential:
		return "token-credential"
	}
	return "unknown"
}

// TokenCallback returns a bearer token for the given resource URI.
type TokenCallback func(resource string) (string, error)

// Config is the parsed, validated connection descriptor. It is built once,
// by ParseConnectionString or a constructor, and never mutated afterwards.
type Config struct {
	ServiceURI        string // Kusto endpoint, absolute http(s) URI
	FederatedSecurity bool
	InitialCatalog    string // default database (optional)

	AuthMode AuthMode

	UserID   string
	Password string

	ApplicationClientID              string
	ApplicationKey                   string
	ApplicationCertificatePath       string
	ApplicationCertificateThumbprint string
	AuthorityID                      string // AAD tenant

	ApplicationToken string
	MSIUserID        string

	// Programmatic credentials, not representable in a connection string.
	TokenCallback   TokenCallback
	TokenCredential azcore.TokenCredential
}

// Canonical connection string keys.
const (
	keyDataSource        = "Data Source"
	keyFederatedSecurity = "AAD Federated Security"
	keyUserID            = "AAD User ID"
	keyPassword          = "Password"
	keyAppClientID       = "Application Client Id"
	keyAppKey            = "Application Key"
	keyAppCertificate    = "Application Certificate"
	keyAppCertThumbprint = "Application Certificate Thumbprint"
	keyAuthorityID       = "Authority Id"
	keyAppToken          = "ApplicationToken"
	keyUserToken         = "UserToken"
	keyMSIAuth           = "MSI Authentication"
	keyMSIParams         = "MSI Params"
	keyAzCLI             = "AZ CLI"
	keyInteractiveLogin  = "Interactive Login"
	keyInitialCatalog    = "Initial Catalog"
)

const censoredValue = "******"

// connectionStringAliases maps every documented key spelling, lowercased, to
// its canonical key.
var connectionStringAliases = map[string]string{
	"data source":     keyDataSource,
	"addr":            keyDataSource,
	"address":         keyDataSource,
	"network address": keyDataSource,
	"server":          keyDataSource,

	"aad federated security": keyFederatedSecurity,
	"federated security":     keyFederatedSecurity,
	"federated":              keyFederatedSecurity,
	"fed":                    keyFederatedSecurity,
	"aadfed":                 keyFederatedSecurity,

	"aad user id": keyUserID,
	"user id":     keyUserID,
	"uid":         keyUserID,
	"user":        keyUserID,

	"password": keyPassword,
	"pwd":      keyPassword,

	"application client id": keyAppClientID,
	"appclientid":           keyAppClientID,

	"application key": keyAppKey,
	"appkey":          keyAppKey,

	"application certificate": keyAppCertificate,

	"application certificate thumbprint": keyAppCertThumbprint,
	"appcert":                            keyAppCertThumbprint,

	"authority id": keyAuthorityID,
	"authorityid":  keyAuthorityID,
	"authority":    keyAuthorityID,
	"tenantid":     keyAuthorityID,
	"tenant":       keyAuthorityID,
	"tid":          keyAuthorityID,

	"application token": keyAppToken,
	"applicationtoken":  keyAppToken,
	"apptoken":          keyAppToken,

	"user token": keyUserToken,
	"usertoken":  keyUserToken,

	"msi auth":           keyMSIAuth,
	"msi authentication": keyMSIAuth,
	"msi_auth":           keyMSIAuth,
	"msi":                keyMSIAuth,

	"msi params": keyMSIParams,
	"msi_params": keyMSIParams,
	"msi_type":   keyMSIParams,

	"az cli": keyAzCLI,

	"interactive login": keyInteractiveLogin,

	"initial catalog": keyInitialCatalog,
}

// ParseConnectionString parses a semicolon-delimited Key=Value connection
// string into a validated Config. Keys match case-insensitively against the
// documented set and its aliases; values may be quoted to escape semicolons.
// Parsing is pure value construction: no network or credential side effects.
func ParseConnectionString(raw string) (*Config, error) {
	seen := make(map[string]string)
	for _, seg := range splitSegments(raw) {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		k, v, found := strings.Cut(seg, "=")
		if !found {
			return nil, &KustoError{
				Number:  ErrCodeMalformedConnectionString,
				Message: "segment %q is not of the form Key=Value", MessageArgs: []interface{}{strings.TrimSpace(seg)},
			}
		}
		key := strings.TrimSpace(k)
		val := unquote(strings.TrimSpace(v))
		if key == "" {
			return nil, &KustoError{
				Number:  ErrCodeMalformedConnectionString,
				Message: "segment %q has an empty key", MessageArgs: []interface{}{strings.TrimSpace(seg)},
			}
		}
		canonical, ok := connectionStringAliases[strings.ToLower(key)]
		if !ok {
			return nil, &KustoError{
				Number:  ErrCodeUnrecognizedKey,
				Message: "unrecognized connection string key %q", MessageArgs: []interface{}{key},
			}
		}
		if val == "" {
			return nil, &KustoError{
				Number:  ErrCodeMalformedConnectionString,
				Message: "missing value for key %q", MessageArgs: []interface{}{key},
			}
		}
		if _, dup := seen[canonical]; dup {
			return nil, &KustoError{
				Number:  ErrCodeDuplicateKey,
				Message: "key %q given more than once", MessageArgs: []interface{}{canonical},
			}
		}
		seen[canonical] = val
	}

	cfg := &Config{
		ServiceURI:                       seen[keyDataSource],
		InitialCatalog:                   seen[keyInitialCatalog],
		UserID:                           seen[keyUserID],
		Password:                         seen[keyPassword],
		ApplicationClientID:              seen[keyAppClientID],
		ApplicationKey:                   seen[keyAppKey],
		ApplicationCertificatePath:       seen[keyAppCertificate],
		ApplicationCertificateThumbprint: seen[keyAppCertThumbprint],
		AuthorityID:                      seen[keyAuthorityID],
		MSIUserID:                        seen[keyMSIParams],
	}
	if tok := seen[keyAppToken]; tok != "" {
		cfg.ApplicationToken = tok
	} else if tok := seen[keyUserToken]; tok != "" {
		cfg.ApplicationToken = tok
	}

	var err error
	if cfg.FederatedSecurity, err = boolValue(seen, keyFederatedSecurity); err != nil {
		return nil, err
	}
	msiAuth, err := boolValue(seen, keyMSIAuth)
	if err != nil {
		return nil, err
	}
	azCLI, err := boolValue(seen, keyAzCLI)
	if err != nil {
		return nil, err
	}
	interactive, err := boolValue(seen, keyInteractiveLogin)
	if err != nil {
		return nil, err
	}

	if err := cfg.resolveAuthMode(msiAuth, azCLI, interactive); err != nil {
		return nil, err
	}
	if err := cfg.validateServiceURI(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveAuthMode enforces the identity invariant: exactly one mode's fields
// are present, with all of that mode's required companions.
func (cfg *Config) resolveAuthMode(msiAuth, azCLI, interactive bool) error {
	var modes []AuthMode
	var fields []string
	claim := func(m AuthMode, field string) {
		modes = append(modes, m)
		fields = append(fields, field)
	}

	if cfg.UserID != "" || cfg.Password != "" {
		claim(AuthUserPassword, keyUserID)
	}
	if cfg.ApplicationCertificatePath != "" || cfg.ApplicationCertificateThumbprint != "" {
		claim(AuthApplicationCertificate, keyAppCertificate)
	}
	if cfg.ApplicationKey != "" {
		claim(AuthApplicationKey, keyAppKey)
	}
	if cfg.ApplicationToken != "" {
		claim(AuthApplicationToken, keyAppToken)
	}
	if msiAuth || cfg.MSIUserID != "" {
		claim(AuthManagedIdentity, keyMSIAuth)
	}
	if azCLI {
		claim(AuthAzureCLI, keyAzCLI)
	}
	if interactive {
		claim(AuthInteractive, keyInteractiveLogin)
	}

	if len(modes) > 1 {
		return &KustoError{
			Number:  ErrCodeInvalidIdentityConfiguration,
			Message: "conflicting identity fields: %s", MessageArgs: []interface{}{strings.Join(fields, ", ")},
		}
	}
	if len(modes) == 0 {
		if cfg.ApplicationClientID != "" {
			return invalidIdentity("%q requires %q or %q", keyAppClientID, keyAppKey, keyAppCertificate)
		}
		cfg.AuthMode = AuthDefault
		return nil
	}

	cfg.AuthMode = modes[0]
	switch cfg.AuthMode {
	case AuthUserPassword:
		if cfg.UserID == "" || cfg.Password == "" {
			return invalidIdentity("%q and %q are both required for user authentication", keyUserID, keyPassword)
		}
	case AuthApplicationKey:
		if cfg.ApplicationClientID == "" || cfg.AuthorityID == "" {
			return invalidIdentity("%q requires %q and %q", keyAppKey, keyAppClientID, keyAuthorityID)
		}
	case AuthApplicationCertificate:
		if cfg.ApplicationClientID == "" || cfg.ApplicationCertificatePath == "" ||
			cfg.ApplicationCertificateThumbprint == "" || cfg.AuthorityID == "" {
			return invalidIdentity("certificate authentication requires %q, %q, %q and %q",
				keyAppClientID, keyAppCertificate, keyAppCertThumbprint, keyAuthorityID)
		}
	}
	return nil
}

func invalidIdentity(format string, args ...interface{}) error {
	return &KustoError{
		Number:  ErrCodeInvalidIdentityConfiguration,
		Message: format, MessageArgs: args,
	}
}

func (cfg *Config) validateServiceURI() error {
	if cfg.ServiceURI == "" {
		return &KustoError{
			Number:  ErrCodeMalformedConnectionString,
			Message: "missing required key %q", MessageArgs: []interface{}{keyDataSource},
		}
	}
	u, err := url.Parse(cfg.ServiceURI)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &KustoError{
			Number:  ErrCodeInvalidServiceURI,
			Message: "service URI %q is not an absolute URI", MessageArgs: []interface{}{cfg.ServiceURI},
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &KustoError{
			Number:  ErrCodeInvalidServiceURI,
			Message: "service URI %q has unsupported scheme %q", MessageArgs: []interface{}{cfg.ServiceURI, u.Scheme},
		}
	}
	return nil
}

// String re-serializes the descriptor as a canonical connection string with
// secrets censored. Parsing the output yields an equal descriptor modulo the
// censored fields.
func (cfg *Config) String() string {
	var sb strings.Builder
	pair := func(key, val string) {
		if val == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(val)
	}
	pair(keyDataSource, cfg.ServiceURI)
	pair(keyInitialCatalog, cfg.InitialCatalog)
	if cfg.FederatedSecurity {
		pair(keyFederatedSecurity, "True")
	}
	switch cfg.AuthMode {
	case AuthUserPassword:
		pair(keyUserID, cfg.UserID)
		pair(keyPassword, censoredValue)
	case AuthApplicationKey:
		pair(keyAppClientID, cfg.ApplicationClientID)
		pair(keyAppKey, censoredValue)
		pair(keyAuthorityID, cfg.AuthorityID)
	case AuthApplicationCertificate:
		pair(keyAppClientID, cfg.ApplicationClientID)
		pair(keyAppCertificate, cfg.ApplicationCertificatePath)
		pair(keyAppCertThumbprint, censoredValue)
		pair(keyAuthorityID, cfg.AuthorityID)
	case AuthApplicationToken:
		pair(keyAppToken, censoredValue)
	case AuthManagedIdentity:
		pair(keyMSIAuth, "True")
		pair(keyMSIParams, cfg.MSIUserID)
	case AuthAzureCLI:
		pair(keyAzCLI, "True")
	case AuthInteractive:
		pair(keyInteractiveLogin, "True")
	}
	return sb.String()
}

func boolValue(seen map[string]string, key string) (bool, error) {
	v, ok := seen[key]
	if !ok {
		return false, nil
	}
	switch strings.ToLower(v) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, &KustoError{
		Number:  ErrCodeMalformedConnectionString,
		Message: "value %q for key %q is not a boolean", MessageArgs: []interface{}{v, key},
	}
}

// splitSegments splits on semicolons outside quoted values.
func splitSegments(raw string) []string {
	var segs []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			cur.WriteByte(ch)
		case ch == '\'' || ch == '"':
			quote = ch
			cur.WriteByte(ch)
		case ch == ';':
			segs = append(segs, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(segs, cur.String())
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// Constructors for the programmatic identity modes that cannot be expressed
// in a connection string.

// NewConfigWithAppKey builds a descriptor authenticating with an AAD
// application id and key.
func NewConfigWithAppKey(serviceURI, clientID, appKey, authorityID string) (*Config, error) {
	cfg := &Config{
		ServiceURI:          serviceURI,
		FederatedSecurity:   true,
		AuthMode:            AuthApplicationKey,
		ApplicationClientID: clientID,
		ApplicationKey:      appKey,
		AuthorityID:         authorityID,
	}
	if clientID == "" || appKey == "" || authorityID == "" {
		return nil, invalidIdentity("%q requires %q and %q", keyAppKey, keyAppClientID, keyAuthorityID)
	}
	return cfg, cfg.validateServiceURI()
}

// NewConfigWithToken builds a descriptor using a caller-supplied bearer token.
func NewConfigWithToken(serviceURI, token string) (*Config, error) {
	cfg := &Config{
		ServiceURI:        serviceURI,
		FederatedSecurity: true,
		AuthMode:          AuthApplicationToken,
		ApplicationToken:  token,
	}
	if token == "" {
		return nil, invalidIdentity("token must not be empty")
	}
	return cfg, cfg.validateServiceURI()
}

// NewConfigWithTokenCallback builds a descriptor that asks the callback for a
// bearer token whenever one is needed.
func NewConfigWithTokenCallback(serviceURI string, cb TokenCallback) (*Config, error) {
	cfg := &Config{
		ServiceURI:        serviceURI,
		FederatedSecurity: true,
		AuthMode:          AuthTokenCallback,
		TokenCallback:     cb,
	}
	if cb == nil {
		return nil, invalidIdentity("token callback must not be nil")
	}
	return cfg, cfg.validateServiceURI()
}

// NewConfigWithTokenCredential builds a descriptor around any
// azcore.TokenCredential implementation.
func NewConfigWithTokenCredential(serviceURI string, cred azcore.TokenCredential) (*Config, error) {
	cfg := &Config{
		ServiceURI:        serviceURI,
		FederatedSecurity: true,
		AuthMode:          AuthTokenCredential,
		TokenCredential:   cred,
	}
	if cred == nil {
		return nil, invalidIdentity("token credential must not be nil")
	}
	return cfg, cfg.validateServiceURI()
}

// NewConfigWithManagedIdentity builds a descriptor using managed identity.
// userID selects a user-assigned identity; empty means system-assigned.
func NewConfigWithManagedIdentity(serviceURI, userID string) (*Config, error) {
	cfg := &Config{
		ServiceURI:        serviceURI,
		FederatedSecurity: true,
		AuthMode:          AuthManagedIdentity,
		MSIUserID:         userID,
	}
	return cfg, cfg.validateServiceURI()
}
