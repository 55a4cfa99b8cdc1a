package telemetry

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/ghuser/dkn/pkg/config"
)

// scrubbedCookies never leave the process: the session cookie identifies a
// logged-in user and the CSRF cookie holds the token secret.
var scrubbedCookies = []string{"dkn_session", "_gorilla_csrf"}

// SetupSentry initializes the Sentry SDK. An empty DSN disables it.
func SetupSentry(cfg *config.Config) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Name,
		Release:          cfg.ServiceName + "@" + cfg.ServiceVersion,
		Debug:            cfg.Debug,
		TracesSampleRate: 0.2,
		SendDefaultPII:   false,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			scrubRequest(event.Request)
			return event
		},
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	return nil
}

// scrubRequest drops credentials from a captured request: form bodies may
// carry passwords, and session cookies must not be replayable.
func scrubRequest(req *sentry.Request) {
	if req == nil {
		return
	}
	req.Data = ""
	if req.Cookies != "" {
		req.Cookies = scrubCookieHeader(req.Cookies)
	}
	for k := range req.Headers {
		if strings.EqualFold(k, "Cookie") {
			req.Headers[k] = scrubCookieHeader(req.Headers[k])
		}
	}
}

func scrubCookieHeader(header string) string {
	parts := strings.Split(header, ";")
	for i, p := range parts {
		name, _, _ := strings.Cut(strings.TrimSpace(p), "=")
		for _, s := range scrubbedCookies {
			if name == s {
				parts[i] = " " + name + "=[Filtered]"
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, ";"))
}

// SentryFlush flushes buffered events before process exit.
func SentryFlush() {
	sentry.Flush(2 * time.Second)
}

// SentryMiddleware captures panics and re-panics so the recovery middleware
// still renders the error page.
func SentryMiddleware() func(http.Handler) http.Handler {
	h := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return h.Handle
}
