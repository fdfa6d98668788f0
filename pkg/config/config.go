// Package config loads the relay's process-wide, immutable-after-init
// configuration from the environment. It is threaded explicitly through
// constructors rather than read ad hoc, mirroring how the teacher threads
// its Config structs through manager/worker/api constructors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cuemby/relay/pkg/relayerr"
)

// Config is populated once at startup from the environment (spec.md §6).
// Loading (and any .env population) is the caller's responsibility; Config
// only reads os.Getenv.
type Config struct {
	Hostname string
	Addr     string
	Port     int
	HTTPS    bool
	Debug    bool

	RestrictedMode     bool
	ValidateSignatures bool
	PublishBlocks      bool

	SledPath string
	APIToken string

	TLSKey  string
	TLSCert string

	LocalDomains []string
	LocalBlurb   string
	FooterBlurb  string

	SourceRepo           string
	RepositoryCommitBase string

	PrometheusAddr string
	PrometheusPort int

	ClientPoolSize int

	OpenTelemetryURL string

	TelegramToken       string
	TelegramAdminHandle string

	// UnreachableThreshold is the consecutive-failure count after which a
	// connected host's contact becomes UNREACHABLE. Not in
	// spec.md's env list; spec.md §9 leaves the default open and asks for
	// it to be configurable, so it is read from an additional variable.
	UnreachableThreshold int
}

// Load reads Config from the environment. Invalid values are ConfigInvalid,
// which is fatal only at startup (spec.md §7).
func Load() (*Config, error) {
	cfg := &Config{
		Hostname:             os.Getenv("HOSTNAME"),
		Addr:                 getenvDefault("ADDR", "0.0.0.0"),
		HTTPS:                getenvBool("HTTPS", false),
		Debug:                getenvBool("DEBUG", false),
		RestrictedMode:       getenvBool("RESTRICTED_MODE", false),
		ValidateSignatures:   getenvBool("VALIDATE_SIGNATURES", true),
		PublishBlocks:        getenvBool("PUBLISH_BLOCKS", false),
		SledPath:             getenvDefault("SLED_PATH", "./data"),
		APIToken:             os.Getenv("API_TOKEN"),
		TLSKey:               os.Getenv("TLS_KEY"),
		TLSCert:              os.Getenv("TLS_CERT"),
		LocalBlurb:           os.Getenv("LOCAL_BLURB"),
		FooterBlurb:          os.Getenv("FOOTER_BLURB"),
		SourceRepo:           os.Getenv("SOURCE_REPO"),
		RepositoryCommitBase: os.Getenv("REPOSITORY_COMMIT_BASE"),
		PrometheusAddr:       getenvDefault("PROMETHEUS_ADDR", "127.0.0.1"),
		OpenTelemetryURL:     os.Getenv("OPENTELEMETRY_URL"),
		TelegramToken:        os.Getenv("TELEGRAM_TOKEN"),
		TelegramAdminHandle:  os.Getenv("TELEGRAM_ADMIN_HANDLE"),
	}

	if domains := os.Getenv("LOCAL_DOMAINS"); domains != "" {
		for _, d := range strings.Split(domains, ",") {
			d = strings.TrimSpace(d)
			if d != "" {
				cfg.LocalDomains = append(cfg.LocalDomains, d)
			}
		}
	}

	var err error
	if cfg.Port, err = getenvInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.PrometheusPort, err = getenvInt("PROMETHEUS_PORT", 9090); err != nil {
		return nil, err
	}
	if cfg.ClientPoolSize, err = getenvInt("CLIENT_POOL_SIZE", 1); err != nil {
		return nil, err
	}
	if cfg.UnreachableThreshold, err = getenvInt("UNREACHABLE_THRESHOLD", 5); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that must hold before the relay starts.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return relayerr.Newf(relayerr.ConfigInvalid, "HOSTNAME must be set")
	}
	if c.SledPath == "" {
		return relayerr.Newf(relayerr.ConfigInvalid, "SLED_PATH must be set")
	}
	if c.HTTPS && (c.TLSKey == "" || c.TLSCert == "") {
		return relayerr.Newf(relayerr.ConfigInvalid, "HTTPS=true requires TLS_KEY and TLS_CERT")
	}
	if c.APIToken == "" {
		return relayerr.Newf(relayerr.ConfigInvalid, "API_TOKEN must be set to protect the admin API")
	}
	if c.ClientPoolSize < 1 {
		return relayerr.Newf(relayerr.ConfigInvalid, "CLIENT_POOL_SIZE must be >= 1")
	}
	if c.UnreachableThreshold < 1 {
		return relayerr.Newf(relayerr.ConfigInvalid, "UNREACHABLE_THRESHOLD must be >= 1")
	}
	return nil
}

// BaseURL is the externally visible origin of this relay.
func (c *Config) BaseURL() string {
	scheme := "http"
	if c.HTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Hostname)
}

// ActorIRI is the IRI of the relay's own actor (spec.md §6, GET /actor).
func (c *Config) ActorIRI() string {
	return c.BaseURL() + "/actor"
}

// InboxIRI is the IRI of the relay's own inbox.
func (c *Config) InboxIRI() string {
	return c.BaseURL() + "/inbox"
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, relayerr.Newf(relayerr.ConfigInvalid, "%s must be an integer: %w", key, err)
	}
	return n, nil
}
