// Package server implements the HTTP surface of spec §6: one gorilla/mux
// router wired to the crypto core of internal/{identity,magiclink,token,
// envelope,sharedsecret}. Envelope verification (§5) and rate limiting
// (§7) are done inside the handlers, not by middleware.
package server

import (
	"net/http"
	"time"

	"github.com/arkaitz-dev/hashrand-sub000/internal/identity"
	"github.com/arkaitz-dev/hashrand-sub000/internal/magiclink"
	"github.com/arkaitz-dev/hashrand-sub000/internal/mailer"
	"github.com/arkaitz-dev/hashrand-sub000/internal/ratelimit"
	"github.com/arkaitz-dev/hashrand-sub000/internal/sharedsecret"
	"github.com/arkaitz-dev/hashrand-sub000/pkg/log"
	"github.com/arkaitz-dev/hashrand-sub000/storage"
)

// Expiry carries the three durations the protocol state machines need, a
// narrowed view of internal/config.Expiry so this package does not import
// the config package directly.
type Expiry struct {
	AccessToken  time.Duration
	RefreshToken time.Duration
	MagicLinkTTL time.Duration
}

// Server bundles every dependency a handler may need. It carries no
// mutable state of its own beyond the rate limiter's internal buckets;
// everything else is either immutable configuration or delegated to
// storage.Storage.
type Server struct {
	Storage           storage.Storage
	Identity          identity.Keys
	MagicLink         magiclink.Keys
	SharedSecret      sharedsecret.Keys
	PrivkeyContextKey []byte // USER_PRIVKEY_CONTEXT_KEY (spec §4.3 step 6)
	Mailer            *mailer.Mailer
	Limiter           *ratelimit.Limiter
	Expiry            Expiry
	Logger            log.Logger
	Environment       string // "development" | "production", gates dev_magic_link

	Now func() time.Time

	metrics *metrics
}

// New builds a Server and its router. now defaults to time.Now when nil,
// the way cmd/dex/serve.go pins UTC "now" once at startup for the whole
// process.
func New(s storage.Storage, idKeys identity.Keys, mlKeys magiclink.Keys, ssKeys sharedsecret.Keys, privkeyContextKey []byte, m *mailer.Mailer, limiter *ratelimit.Limiter, expiry Expiry, logger log.Logger, environment string, now func() time.Time) *Server {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Server{
		Storage:           s,
		Identity:          idKeys,
		MagicLink:         mlKeys,
		SharedSecret:      ssKeys,
		PrivkeyContextKey: privkeyContextKey,
		Mailer:            m,
		Limiter:           limiter,
		Expiry:            expiry,
		Logger:            logger,
		Environment:       environment,
		Now:               now,
		metrics:           newMetrics(),
	}
}

// Handler returns the fully wired http.Handler for the process's web
// listener: the mux router behind the request-logging and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.router())
}
