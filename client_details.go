package gokusto

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// clientDetails identifies the calling application in request headers, for
// the service's QueryCompletionInformation and tracing.
type clientDetails struct {
	application string
	user        string
	version     string
}

var headerEscapePattern = regexp.MustCompile(`[\r\n\s{}|]+`)

func escapeHeaderValue(v string) string {
	return "{" + headerEscapePattern.ReplaceAllString(v, "_") + "}"
}

func formatHeaderFields(fields ...[2]string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f[0] + ":" + escapeHeaderValue(f[1])
	}
	return strings.Join(parts, "|")
}

func defaultClientDetails() *clientDetails {
	app := "unknown"
	if exe, err := os.Executable(); err == nil {
		app = filepath.Base(exe)
	}
	user := os.Getenv("USER")
	if user == "" {
		if u := os.Getenv("USERNAME"); u != "" {
			if d := os.Getenv("USERDOMAIN"); d != "" {
				user = d + "\\" + u
			} else {
				user = u
			}
		} else {
			user = "unknown"
		}
	}
	return &clientDetails{
		application: app,
		user:        user,
		version: formatHeaderFields(
			[2]string{"Kusto.Go.Client", goKustoVersion},
			[2]string{"Runtime.Version", runtime.Version()},
			[2]string{"Os", runtime.GOOS},
			[2]string{"Arch", runtime.GOARCH},
		),
	}
}

func (cd *clientDetails) requestID() string {
	return fmt.Sprintf("KGC.execute;%s", uuid.NewString())
}
