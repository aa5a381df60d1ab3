package gokusto

import (
	"regexp"
)

const (
	connStringSecretPattern = `(?i)(application key|appkey|password|pwd|applicationtoken|apptoken|usertoken|usrtoken)\s*=\s*([^;]+)`
	bearerTokenPattern      = `(?i)(bearer|jwt)[\s:=]*([a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+)`
	clientSecretPattern     = `(?i)(client_secret|clientsecret)([\'\"\s:=]+)([a-zA-Z0-9!#\$%&\(\)\*\+\,\-\./:;<=>\?@\[\]\^_\{\|\}~]+)`
	accessTokenPattern      = `(?i)("access_token")\s*:\s*"([a-zA-Z0-9=/_\-\+\.]{8,})"`
)

var (
	connStringSecretRegexp = regexp.MustCompile(connStringSecretPattern)
	bearerTokenRegexp      = regexp.MustCompile(bearerTokenPattern)
	clientSecretRegexp     = regexp.MustCompile(clientSecretPattern)
	accessTokenRegexp      = regexp.MustCompile(accessTokenPattern)
)

type secretmasker string

func (s secretmasker) maskConnStringSecrets() secretmasker {
	return secretmasker(connStringSecretRegexp.ReplaceAllString(s.String(), "$1=****"))
}

func (s secretmasker) maskBearerToken() secretmasker {
	return secretmasker(bearerTokenRegexp.ReplaceAllString(s.String(), "$1 ****"))
}

func (s secretmasker) maskClientSecret() secretmasker {
	return secretmasker(clientSecretRegexp.ReplaceAllString(s.String(), "$1${2}****"))
}

func (s secretmasker) maskAccessToken() secretmasker {
	return secretmasker(accessTokenRegexp.ReplaceAllString(s.String(), `$1: "****"`))
}

func (s secretmasker) String() string {
	return string(s)
}

// maskSecrets masks credential material in text before it reaches logs or
// test output.
func maskSecrets(text string) string {
	return secretmasker(text).
		maskConnStringSecrets().
		maskBearerToken().
		maskClientSecret().
		maskAccessToken().
		String()
}
