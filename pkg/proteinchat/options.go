package proteinchat

import (
	"net/http"

	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
)

// AppOption configures optional runtime dependencies for App.
type AppOption func(*appDeps)

type appDeps struct {
	logger     loggerpkg.Logger
	httpClient *http.Client
	verbose    bool
	getenv     func(string) string
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) AppOption {
	return func(d *appDeps) {
		d.logger = l
	}
}

// WithHTTPClient overrides the client used to reach model endpoints.
func WithHTTPClient(c *http.Client) AppOption {
	return func(d *appDeps) {
		d.httpClient = c
	}
}

// WithVerbose enables debug logging of each chat step.
func WithVerbose(v bool) AppOption {
	return func(d *appDeps) {
		d.verbose = v
	}
}

// WithGetenv replaces os.Getenv for API key and rank lookup.
func WithGetenv(fn func(string) string) AppOption {
	return func(d *appDeps) {
		d.getenv = fn
	}
}
