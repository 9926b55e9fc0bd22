package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	ListenAddr  string
	DatabaseURL string
	SeedFile    string

	RedirectMaxHops    int
	RedirectHopTimeout time.Duration
	RedirectTotal      time.Duration
	LookupTimeout      time.Duration

	SafeListRefresh time.Duration
	SafeListMaxAge  time.Duration

	DNSBLEnabled     bool
	DNSBLResolver    string
	DNSBLDomainZones string
	DNSBLIPZones     string

	SafeBrowsingKey string

	WhoisEnabled       bool
	WhoisNewDomainDays int

	RateLimitRPS   float64
	RateLimitBurst int

	Debug bool
}

// Load reads envFiles (".env" when none are given) and then the environment.
// Missing env files are ignored.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	var errs []error
	c := Config{
		ListenAddr:  listenAddr(),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SeedFile:    os.Getenv("SEED_FILE"),

		RedirectMaxHops:    getInt("REDIRECT_MAX_HOPS", 8, &errs),
		RedirectHopTimeout: getDuration("REDIRECT_HOP_TIMEOUT", 8*time.Second, &errs),
		RedirectTotal:      getDuration("REDIRECT_TOTAL_TIMEOUT", 20*time.Second, &errs),
		LookupTimeout:      getDuration("LOOKUP_TIMEOUT", 8*time.Second, &errs),

		SafeListRefresh: getDuration("SAFELIST_REFRESH", 10*time.Minute, &errs),
		SafeListMaxAge:  getDuration("SAFELIST_MAX_AGE", 30*time.Minute, &errs),

		DNSBLEnabled:     getBool("DNSBL_ENABLED", false, &errs),
		DNSBLResolver:    getString("DNSBL_RESOLVER", "8.8.8.8:53"),
		DNSBLDomainZones: os.Getenv("DNSBL_DOMAIN_ZONES"),
		DNSBLIPZones:     os.Getenv("DNSBL_IP_ZONES"),

		SafeBrowsingKey: os.Getenv("GOOGLE_SAFE_BROWSING_KEY"),

		WhoisEnabled:       getBool("WHOIS_ENABLED", false, &errs),
		WhoisNewDomainDays: getInt("WHOIS_NEW_DOMAIN_DAYS", 60, &errs),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20, &errs),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40, &errs),

		Debug: getBool("LOG_DEBUG", false, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// RequireDatabase fails when no DATABASE_URL is configured.
func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

// RequestTimeout covers the slowest scan: a full redirect budget, then a safe-list
// reload, the database lookups and WHOIS, each bounded by LookupTimeout.
func (c Config) RequestTimeout() time.Duration {
	return c.RedirectTotal + 3*c.LookupTimeout + 5*time.Second
}

func listenAddr() string {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		return v
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func getFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func getBool(key string, def bool, errs *[]error) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
