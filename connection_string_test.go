package gokusto

import (
	"strings"
	"testing"
)

type parseConnectionStringTC struct {
	str     string
	cfg     *Config
	errCode int
}

func TestParseConnectionString(t *testing.T) {
	testcases := []parseConnectionStringTC{
		{
			str: "Data Source=https://help.kusto.windows.net",
			cfg: &Config{
				ServiceURI: "https://help.kusto.windows.net",
				AuthMode:   AuthDefault,
			},
		},
		{
			str: "Data Source=https://help.kusto.windows.net;Initial Catalog=NetDefaultDB",
			cfg: &Config{
				ServiceURI:     "https://help.kusto.windows.net",
				InitialCatalog: "NetDefaultDB",
				AuthMode:       AuthDefault,
			},
		},
		{
			str: "Data Source=https://mycluster.kusto.windows.net;AAD Federated Security=True;" +
				"Application Client Id=11111111-2222-3333-4444-555555555555;Application Key=secret~key;" +
				"Authority Id=72f988bf-86f1-41af-91ab-2d7cd011db47",
			cfg: &Config{
				ServiceURI:          "https://mycluster.kusto.windows.net",
				FederatedSecurity:   true,
				AuthMode:            AuthApplicationKey,
				ApplicationClientID: "11111111-2222-3333-4444-555555555555",
				ApplicationKey:      "secret~key",
				AuthorityID:         "72f988bf-86f1-41af-91ab-2d7cd011db47",
			},
		},
		{
			str: "Data Source=https://cluster.example.com;AAD Federated Security=True;" +
				"Application Client Id=abc;Application Key=secret;Authority Id=tenant1",
			cfg: &Config{
				ServiceURI:          "https://cluster.example.com",
				FederatedSecurity:   true,
				AuthMode:            AuthApplicationKey,
				ApplicationClientID: "abc",
				ApplicationKey:      "secret",
				AuthorityID:         "tenant1",
			},
		},
		{
			// aliases resolve case-insensitively to canonical keys
			str: "server=https://mycluster.kusto.windows.net;AADFED=true;AppClientId=app;AppKey=key;TenantId=tenant",
			cfg: &Config{
				ServiceURI:          "https://mycluster.kusto.windows.net",
				FederatedSecurity:   true,
				AuthMode:            AuthApplicationKey,
				ApplicationClientID: "app",
				ApplicationKey:      "key",
				AuthorityID:         "tenant",
			},
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;AAD User ID=user@contoso.com;Password=p@ss;word",
			errCode: ErrCodeMalformedConnectionString, // "word" is not Key=Value
		},
		{
			str: "Data Source=https://mycluster.kusto.windows.net;AAD User ID=user@contoso.com;Password=p@ssword",
			cfg: &Config{
				ServiceURI: "https://mycluster.kusto.windows.net",
				AuthMode:   AuthUserPassword,
				UserID:     "user@contoso.com",
				Password:   "p@ssword",
			},
		},
		{
			// quoted values may carry semicolons
			str: `Data Source=https://mycluster.kusto.windows.net;AAD User ID=user@contoso.com;Password="p;ss"`,
			cfg: &Config{
				ServiceURI: "https://mycluster.kusto.windows.net",
				AuthMode:   AuthUserPassword,
				UserID:     "user@contoso.com",
				Password:   "p;ss",
			},
		},
		{
			str: "Data Source=https://mycluster.kusto.windows.net;ApplicationToken=eyJ0token",
			cfg: &Config{
				ServiceURI:       "https://mycluster.kusto.windows.net",
				AuthMode:         AuthApplicationToken,
				ApplicationToken: "eyJ0token",
			},
		},
		{
			str: "Data Source=https://mycluster.kusto.windows.net;MSI Authentication=True;MSI Params=msi-client-id",
			cfg: &Config{
				ServiceURI: "https://mycluster.kusto.windows.net",
				AuthMode:   AuthManagedIdentity,
				MSIUserID:  "msi-client-id",
			},
		},
		{
			str: "Data Source=https://mycluster.kusto.windows.net;AZ CLI=True",
			cfg: &Config{
				ServiceURI: "https://mycluster.kusto.windows.net",
				AuthMode:   AuthAzureCLI,
			},
		},
		{
			str: "Data Source=https://mycluster.kusto.windows.net;Interactive Login=true",
			cfg: &Config{
				ServiceURI: "https://mycluster.kusto.windows.net",
				AuthMode:   AuthInteractive,
			},
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;Not A Key=value",
			errCode: ErrCodeUnrecognizedKey,
		},
		{
			str:     "Data Source=https://a.example.com;server=https://b.example.com",
			errCode: ErrCodeDuplicateKey,
		},
		{
			str:     "AAD User ID=user@contoso.com;Password=pw",
			errCode: ErrCodeMalformedConnectionString, // no Data Source
		},
		{
			str:     "Data Source=not a uri",
			errCode: ErrCodeInvalidServiceURI,
		},
		{
			str:     "Data Source=ftp://mycluster.kusto.windows.net",
			errCode: ErrCodeInvalidServiceURI,
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;Password=pw",
			errCode: ErrCodeInvalidIdentityConfiguration, // password without user
		},
		{
			str: "Data Source=https://mycluster.kusto.windows.net;AAD User ID=u;Password=p;Application Key=k;" +
				"Application Client Id=c;Authority Id=t",
			errCode: ErrCodeInvalidIdentityConfiguration, // two identity modes claimed
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;Application Key=k",
			errCode: ErrCodeInvalidIdentityConfiguration, // missing client id and tenant
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;Application Client Id=c",
			errCode: ErrCodeInvalidIdentityConfiguration, // client id without key or cert
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;AAD Federated Security=maybe",
			errCode: ErrCodeMalformedConnectionString,
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;=value",
			errCode: ErrCodeMalformedConnectionString,
		},
		{
			str:     "Data Source=https://mycluster.kusto.windows.net;Initial Catalog=",
			errCode: ErrCodeMalformedConnectionString,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.str, func(t *testing.T) {
			cfg, err := ParseConnectionString(tc.str)
			if tc.errCode != 0 {
				assertNotNilF(t, err, "expected parse to fail")
				var ke *KustoError
				assertErrorsAsF(t, err, &ke)
				assertEqualE(t, ke.Number, tc.errCode)
				return
			}
			assertNilF(t, err, "parse failed")
			assertDeepEqualE(t, cfg, tc.cfg)
		})
	}
}

func TestParseConnectionStringIgnoresEmptySegments(t *testing.T) {
	cfg, err := ParseConnectionString("Data Source=https://mycluster.kusto.windows.net;;  ;")
	assertNilF(t, err)
	assertEqualE(t, cfg.ServiceURI, "https://mycluster.kusto.windows.net")
}

func TestConnectionStringRoundTrip(t *testing.T) {
	testcases := []string{
		"Data Source=https://help.kusto.windows.net",
		"Data Source=https://help.kusto.windows.net;Initial Catalog=Samples",
		"Data Source=https://c.kusto.windows.net;AAD Federated Security=True;" +
			"Application Client Id=app;Application Key=verysecret;Authority Id=tenant",
		"Data Source=https://c.kusto.windows.net;AAD User ID=user@contoso.com;Password=hunter22",
		"Data Source=https://c.kusto.windows.net;MSI Authentication=True;MSI Params=msi-id",
		"Data Source=https://c.kusto.windows.net;ApplicationToken=sometoken",
		"Data Source=https://c.kusto.windows.net;AZ CLI=True",
	}
	for _, str := range testcases {
		t.Run(str, func(t *testing.T) {
			cfg, err := ParseConnectionString(str)
			assertNilF(t, err)

			serialized := cfg.String()
			assertFalseE(t, strings.Contains(serialized, "verysecret"), "secret leaked")
			assertFalseE(t, strings.Contains(serialized, "hunter22"), "password leaked")

			reparsed, err := ParseConnectionString(serialized)
			assertNilF(t, err, "round-trip parse failed")
			assertEqualE(t, reparsed.ServiceURI, cfg.ServiceURI)
			assertEqualE(t, reparsed.InitialCatalog, cfg.InitialCatalog)
			assertEqualE(t, reparsed.AuthMode, cfg.AuthMode)
			assertEqualE(t, reparsed.UserID, cfg.UserID)
			assertEqualE(t, reparsed.ApplicationClientID, cfg.ApplicationClientID)
			assertEqualE(t, reparsed.AuthorityID, cfg.AuthorityID)
		})
	}
}

func TestConnectionStringCanonicalKeysResolve(t *testing.T) {
	canonical := []string{
		keyDataSource, keyFederatedSecurity, keyUserID, keyPassword,
		keyAppClientID, keyAppKey, keyAppCertificate, keyAppCertThumbprint,
		keyAuthorityID, keyAppToken, keyUserToken, keyMSIAuth, keyMSIParams,
		keyAzCLI, keyInteractiveLogin, keyInitialCatalog,
	}
	for _, key := range canonical {
		resolved, ok := connectionStringAliases[strings.ToLower(key)]
		assertTrueF(t, ok, "canonical key has no alias entry: "+key)
		assertEqualE(t, resolved, key)
	}
}

func TestConnectionStringCensorsSecrets(t *testing.T) {
	cfg, err := ParseConnectionString(
		"Data Source=https://c.kusto.windows.net;AAD Federated Security=True;" +
			"Application Client Id=app;Application Key=topsecret;Authority Id=tenant")
	assertNilF(t, err)
	assertStringContainsE(t, cfg.String(), "Application Key="+censoredValue)
}

func TestNewConfigConstructors(t *testing.T) {
	cfg, err := NewConfigWithAppKey("https://c.kusto.windows.net", "app", "key", "tenant")
	assertNilF(t, err)
	assertEqualE(t, cfg.AuthMode, AuthApplicationKey)

	cfg, err = NewConfigWithToken("https://c.kusto.windows.net", "token")
	assertNilF(t, err)
	assertEqualE(t, cfg.AuthMode, AuthApplicationToken)

	cfg, err = NewConfigWithTokenCallback("https://c.kusto.windows.net", func(resource string) (string, error) {
		return "tok", nil
	})
	assertNilF(t, err)
	assertEqualE(t, cfg.AuthMode, AuthTokenCallback)

	cfg, err = NewConfigWithManagedIdentity("https://c.kusto.windows.net", "")
	assertNilF(t, err)
	assertEqualE(t, cfg.AuthMode, AuthManagedIdentity)

	_, err = NewConfigWithAppKey("not a uri", "app", "key", "tenant")
	assertNotNilE(t, err, "expected invalid uri to fail")
}
