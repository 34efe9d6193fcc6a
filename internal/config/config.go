// Package config defines the process configuration: the secret material
// of spec §6, storage/web/mailer/rate-limit settings, and the validation
// rules that make the process refuse to serve on a weak configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const minSecretLen = 64

// Environment selects which secret set and duration defaults apply.
// Separation of dev vs prod key material is mandatory (spec §6).
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the top-level config format, decoded from YAML by cmd/hashrand.
type Config struct {
	Environment Environment `json:"environment"`
	Issuer      string      `json:"issuer"`

	Web       Web       `json:"web"`
	Storage   Storage   `json:"storage"`
	Mailer    Mailer    `json:"mailer"`
	Telemetry Telemetry `json:"telemetry"`
	Expiry    Expiry    `json:"expiry"`
	RateLimit RateLimit `json:"rateLimit"`
	Secrets   Secrets   `json:"secrets"`
	Logger    Logger    `json:"logger"`
}

// Web is the config format for the HTTP server.
type Web struct {
	HTTP    string `json:"http"`
	HTTPS   string `json:"https"`
	TLSCert string `json:"tlsCert"`
	TLSKey  string `json:"tlsKey"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	Type string `json:"type"` // "memory" | "sqlite3" | "postgres"
	DSN  string `json:"dsn"`
}

// Mailer selects and configures the outbound email sink.
type Mailer struct {
	Type string `json:"type"` // "smtp" | "dev"
	SMTP SMTP   `json:"smtp"`
	From string `json:"from"`
}

// SMTP holds SMTP transport options, mirrored after email/smtp.go's
// ConnectionInfo in the teacher codebase.
type SMTP struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"passwordEnv"`
}

// Telemetry configures the metrics/health listener.
type Telemetry struct {
	Addr string `json:"addr"`
}

// Expiry carries every duration the core's protocol state machines
// depend on (spec §4.3, §4.4).
type Expiry struct {
	AccessToken  time.Duration `json:"accessToken"`
	RefreshToken time.Duration `json:"refreshToken"`
	MagicLinkTTL time.Duration `json:"magicLinkTTL"`
}

// RotationThreshold returns the 2/3 boundary (spec §4.4) for the
// configured refresh-token lifetime.
func (e Expiry) RotationThreshold() time.Duration {
	return e.RefreshToken * 2 / 3
}

// DefaultExpiry returns the duration defaults named in spec §4.3/§4.4 for
// the given environment.
func DefaultExpiry(env Environment) Expiry {
	if env == Production {
		return Expiry{
			AccessToken:  15 * time.Minute,
			RefreshToken: 8 * time.Hour,
			MagicLinkTTL: 15 * time.Minute,
		}
	}
	return Expiry{
		AccessToken:  1 * time.Minute,
		RefreshToken: 5 * time.Minute,
		MagicLinkTTL: 2 * time.Minute,
	}
}

// RateLimit configures the magic-link issuance bucket (spec §7 RateLimited).
type RateLimit struct {
	RequestsPerMinute float64 `json:"requestsPerMinute"`
	Burst             int     `json:"burst"`
}

// Logger selects the pkg/log implementation and verbosity.
type Logger struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Impl   string `json:"impl"` // "slog" | "logrus"
}

// Secrets holds the eleven 64-byte keys of spec §6 that this server reads.
// LoadSecrets fills every field from a fixed HASHRAND_* environment
// variable, so secret values never appear in the YAML file on disk.
type Secrets struct {
	UserIDDerivation  []byte
	DBIndexDerivation []byte
	Ed25519Derivation []byte
	X25519Derivation  []byte

	MLinkContentKey   []byte
	MLinkTokenHashKey []byte

	UserPrivkeyContextKey []byte

	SharedURLCipherKey []byte
	SharedContentKey   []byte
	SharedChecksumKey  []byte
	SharedDBIndexKey   []byte
}

// LoadSecrets reads every secret key from its environment variable. It
// returns an error naming every variable that is missing or shorter than
// minSecretLen bytes, matching spec §6's "the process refuses to serve"
// requirement.
func LoadSecrets(getenv func(string) string) (Secrets, error) {
	var s Secrets
	var missing []string

	read := func(name string, dst *[]byte) {
		v := getenv(name)
		if len(v) < minSecretLen {
			missing = append(missing, fmt.Sprintf("%s (%d bytes, need >= %d)", name, len(v), minSecretLen))
			return
		}
		*dst = []byte(v)
	}

	read("HASHRAND_USER_ID_DERIVATION_KEY", &s.UserIDDerivation)
	read("HASHRAND_DB_INDEX_DERIVATION_KEY", &s.DBIndexDerivation)
	read("HASHRAND_ED25519_SERVER_DERIVATION_KEY", &s.Ed25519Derivation)
	read("HASHRAND_X25519_SERVER_DERIVATION_KEY", &s.X25519Derivation)
	read("HASHRAND_MLINK_CONTENT_KEY", &s.MLinkContentKey)
	read("HASHRAND_MLINK_TOKEN_HASH_KEY", &s.MLinkTokenHashKey)
	read("HASHRAND_USER_PRIVKEY_CONTEXT_KEY", &s.UserPrivkeyContextKey)
	read("HASHRAND_SHARED_URL_CIPHER_KEY", &s.SharedURLCipherKey)
	read("HASHRAND_SHARED_CONTENT_KEY", &s.SharedContentKey)
	read("HASHRAND_SHARED_CHECKSUM_KEY", &s.SharedChecksumKey)
	read("HASHRAND_SHARED_DB_INDEX_KEY", &s.SharedDBIndexKey)

	// Spec §6's REFRESH_CIPHER_KEY/REFRESH_NONCE_KEY are only needed by a
	// non-Ed25519 refresh-token MAC variant. This server signs refresh
	// tokens as Ed25519 JWTs (internal/token), never as an encrypted blob,
	// so those two keys have no reader here and are intentionally not
	// required at startup.

	if len(missing) > 0 {
		return Secrets{}, fmt.Errorf("missing or undersized secrets:\n\t-\t%s", strings.Join(missing, "\n\t-\t"))
	}
	return s, nil
}

// Validate runs the fast structural checks the way cmd/dex/config.go's
// Config.Validate does: a table of {bad, message} checks, joined into a
// single error.
func (c Config) Validate() error {
	checks := []struct {
		bad    bool
		errMsg string
	}{
		{c.Environment != Development && c.Environment != Production, "environment must be \"development\" or \"production\""},
		{c.Issuer == "", "no issuer specified in config file"},
		{c.Storage.Type == "", "no storage type specified in config file"},
		{c.Web.HTTP == "" && c.Web.HTTPS == "", "must supply a HTTP/HTTPS address to listen on"},
		{c.Web.HTTPS != "" && c.Web.TLSCert == "", "no cert specified for HTTPS"},
		{c.Web.HTTPS != "" && c.Web.TLSKey == "", "no private key specified for HTTPS"},
		{c.Mailer.Type == "", "no mailer type specified in config file"},
		{c.Environment == Production && c.Mailer.Type == "dev", "mailer type \"dev\" is not allowed in production"},
		{c.RateLimit.RequestsPerMinute <= 0, "rateLimit.requestsPerMinute must be positive"},
	}

	var errs []string
	for _, check := range checks {
		if check.bad {
			errs = append(errs, check.errMsg)
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("invalid config:\n\t-\t%s", strings.Join(errs, "\n\t-\t"))
	}
	return nil
}

// ResolveExpiry fills any zero-valued duration in c.Expiry with the
// environment's default (spec §4.3/§4.4).
func (c Config) ResolveExpiry() Expiry {
	def := DefaultExpiry(c.Environment)
	e := c.Expiry
	if e.AccessToken == 0 {
		e.AccessToken = def.AccessToken
	}
	if e.RefreshToken == 0 {
		e.RefreshToken = def.RefreshToken
	}
	if e.MagicLinkTTL == 0 {
		e.MagicLinkTTL = def.MagicLinkTTL
	}
	return e
}

// Getenv is the production environment-variable reader, split out so
// tests can substitute a map-backed stand-in.
func Getenv(key string) string {
	return os.Getenv(key)
}
