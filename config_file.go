package gokusto

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// connectionsFile is the TOML shape of a named-connections file. Each profile
// either carries a full connection string or individual fields that are
// composed into one.
type connectionsFile struct {
	Connections map[string]connectionProfile `toml:"connections"`
}

type connectionProfile struct {
	ConnectionString string `toml:"connection_string"`

	DataSource       string `toml:"data_source"`
	InitialCatalog   string `toml:"initial_catalog"`
	TenantID         string `toml:"tenant_id"`
	ClientID         string `toml:"client_id"`
	ClientSecret     string `toml:"client_secret"`
	ApplicationToken string `toml:"application_token"`
	ManagedIdentity  bool   `toml:"managed_identity"`
	MSIClientID      string `toml:"msi_client_id"`
}

// LoadConnectionsFile parses every profile in the TOML file into validated
// configurations.
func LoadConnectionsFile(path string) (map[string]*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cf connectionsFile
	if err := toml.Unmarshal(data, &cf); err != nil {
		return nil, &KustoError{
			Number:  ErrCodeMalformedConnectionString,
			Message: "failed to parse connections file %s: %v", MessageArgs: []interface{}{path, err},
		}
	}
	configs := make(map[string]*Config, len(cf.Connections))
	for name, profile := range cf.Connections {
		cfg, err := profile.toConfig()
		if err != nil {
			return nil, &KustoError{
				Number:  ErrCodeMalformedConnectionString,
				Message: "connection %q in %s: %v", MessageArgs: []interface{}{name, path, err},
			}
		}
		configs[name] = cfg
	}
	return configs, nil
}

// LoadConnection loads a single named profile from the TOML file.
func LoadConnection(path, name string) (*Config, error) {
	configs, err := LoadConnectionsFile(path)
	if err != nil {
		return nil, err
	}
	cfg, ok := configs[name]
	if !ok {
		return nil, &KustoError{
			Number:  ErrCodeMalformedConnectionString,
			Message: "connection %q not found in %s", MessageArgs: []interface{}{name, path},
		}
	}
	return cfg, nil
}

func (p *connectionProfile) toConfig() (*Config, error) {
	if p.ConnectionString != "" {
		return ParseConnectionString(p.ConnectionString)
	}
	if p.DataSource == "" {
		return nil, fmt.Errorf("profile needs either connection_string or data_source")
	}
	pairs := [][2]string{
		{keyDataSource, p.DataSource},
		{keyFederatedSecurity, "true"},
	}
	if p.InitialCatalog != "" {
		pairs = append(pairs, [2]string{keyInitialCatalog, p.InitialCatalog})
	}
	if p.TenantID != "" {
		pairs = append(pairs, [2]string{keyAuthorityID, p.TenantID})
	}
	if p.ClientID != "" {
		pairs = append(pairs, [2]string{keyAppClientID, p.ClientID})
	}
	if p.ClientSecret != "" {
		pairs = append(pairs, [2]string{keyAppKey, p.ClientSecret})
	}
	if p.ApplicationToken != "" {
		pairs = append(pairs, [2]string{keyAppToken, p.ApplicationToken})
	}
	if p.ManagedIdentity {
		pairs = append(pairs, [2]string{keyMSIAuth, "true"})
		if p.MSIClientID != "" {
			pairs = append(pairs, [2]string{keyMSIParams, p.MSIClientID})
		}
	}
	segs := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		quoted, err := quoteSegmentValue(kv[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %v", kv[0], err)
		}
		segs = append(segs, kv[0]+"="+quoted)
	}
	return ParseConnectionString(strings.Join(segs, ";"))
}

// quoteSegmentValue wraps a composed value in the quote character it does not
// contain itself, so semicolons, quotes and surrounding whitespace survive
// connection string parsing.
func quoteSegmentValue(v string) (string, error) {
	if !strings.ContainsAny(v, `;'"`) && v == strings.TrimSpace(v) {
		return v, nil
	}
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`, nil
	}
	if !strings.Contains(v, "'") {
		return "'" + v + "'", nil
	}
	return "", fmt.Errorf("value mixes both quote characters")
}
