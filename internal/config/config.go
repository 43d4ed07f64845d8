package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/classlink/internal/security/secretbox"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
		// SiteURL se incluye en los avisos de login rechazado.
		SiteURL string `yaml:"site_url"`
	} `yaml:"app"`

	Server struct {
		Addr              string        `yaml:"addr"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		// TrustedProxies: IPs o CIDRs cuyos X-Forwarded-For/X-Real-IP se
		// aceptan. Vacío = se usa siempre la IP del socket.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres | sqlite
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis | none
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	// Classlink es la config del plugin. Los valores guardados en
	// config_plugins (auth_classlink) se aplican encima con ApplyPluginConfig.
	Classlink struct {
		Flow          string        `yaml:"flow"` // rocreds
		ClientID      string        `yaml:"client_id"`
		ClientSecret  string        `yaml:"client_secret"`
		AuthEndpoint  string        `yaml:"auth_endpoint"`
		TokenEndpoint string        `yaml:"token_endpoint"`
		Resource      string        `yaml:"resource"`
		Scopes        []string      `yaml:"scopes"`
		Timeout       time.Duration `yaml:"timeout"`

		AutoAppend                    string `yaml:"autoappend"`
		PreventAccountCreation        bool   `yaml:"prevent_account_creation"`
		UserRestrictions              string `yaml:"user_restrictions"` // una regex por línea
		UserRestrictionsCaseSensitive bool   `yaml:"user_restrictions_case_sensitive"`
		// UserRestrictionsClaim: claim contra el que se evalúan las
		// restricciones. Vacío = upn, o sub si falta.
		UserRestrictionsClaim string `yaml:"user_restrictions_claim"`

		// VerifySignature valida el id_token contra el JWKS del issuer (go-oidc).
		VerifySignature bool   `yaml:"verify_signature"`
		Issuer          string `yaml:"issuer"`
	} `yaml:"classlink"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	// RateLimit acota los intentos de login por IP. Usa Redis si cache.kind=redis.
	RateLimit struct {
		Enabled bool          `yaml:"enabled"`
		Max     int           `yaml:"max"`
		Window  time.Duration `yaml:"window"`
	} `yaml:"rate_limit"`

	// Alerts: destinatarios del aviso de login rechazado. Vacío = solo log.
	Alerts struct {
		To      []string `yaml:"to"`
		Subject string   `yaml:"subject"`
	} `yaml:"alerts"`
}

// Load lee el YAML (path vacío = solo defaults), aplica env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "classlink:"
	}
	if c.Classlink.Flow == "" {
		c.Classlink.Flow = "rocreds"
	}
	if c.Classlink.Timeout == 0 {
		c.Classlink.Timeout = 15 * time.Second
	}
	if len(c.Classlink.Scopes) == 0 {
		c.Classlink.Scopes = []string{"openid", "profile", "email"}
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = 10
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Alerts.Subject == "" {
		c.Alerts.Subject = "Classlink: login rejected, account creation disabled"
	}
}

// CacheTTL es la duración de cache.memory.default_ttl ya validada.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	return d
}

// ConnMaxLifetime es storage.postgres.conn_max_lifetime ya validada (0 si vacía).
func (c *Config) ConnMaxLifetime() time.Duration {
	d, _ := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		return splitCSV(s), true
	}
	return nil, false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SITE_URL"); ok {
		c.App.SiteURL = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// CLASSLINK
	if v, ok := getEnvStr("CLASSLINK_FLOW"); ok {
		c.Classlink.Flow = v
	}
	if v, ok := getEnvStr("CLASSLINK_CLIENT_ID"); ok {
		c.Classlink.ClientID = v
	}
	if v, ok := getEnvStr("CLASSLINK_CLIENT_SECRET"); ok {
		c.Classlink.ClientSecret = v
	}
	if v, ok := getEnvStr("CLASSLINK_AUTH_ENDPOINT"); ok {
		c.Classlink.AuthEndpoint = v
	}
	if v, ok := getEnvStr("CLASSLINK_TOKEN_ENDPOINT"); ok {
		c.Classlink.TokenEndpoint = v
	}
	if v, ok := getEnvStr("CLASSLINK_RESOURCE"); ok {
		c.Classlink.Resource = v
	}
	if v, ok := getEnvCSV("CLASSLINK_SCOPES"); ok {
		c.Classlink.Scopes = v
	}
	if v, ok := getEnvDur("CLASSLINK_TIMEOUT"); ok {
		c.Classlink.Timeout = v
	}
	if v, ok := getEnvStr("CLASSLINK_AUTOAPPEND"); ok {
		c.Classlink.AutoAppend = v
	}
	if v, ok := getEnvBool("CLASSLINK_PREVENT_ACCOUNT_CREATION"); ok {
		c.Classlink.PreventAccountCreation = v
	}
	if v, ok := getEnvStr("CLASSLINK_USER_RESTRICTIONS"); ok {
		c.Classlink.UserRestrictions = v
	}
	if v, ok := getEnvBool("CLASSLINK_USER_RESTRICTIONS_CASE_SENSITIVE"); ok {
		c.Classlink.UserRestrictionsCaseSensitive = v
	}
	if v, ok := getEnvStr("CLASSLINK_USER_RESTRICTIONS_CLAIM"); ok {
		c.Classlink.UserRestrictionsClaim = v
	}
	if v, ok := getEnvBool("CLASSLINK_VERIFY_SIGNATURE"); ok {
		c.Classlink.VerifySignature = v
	}
	if v, ok := getEnvStr("CLASSLINK_ISSUER"); ok {
		c.Classlink.Issuer = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}
	if v, ok := getEnvCSV("ALERTS_TO"); ok {
		c.Alerts.To = v
	}

	// RATE LIMIT
	if v, ok := getEnvBool("RATE_LIMIT_ENABLED"); ok {
		c.RateLimit.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LIMIT_MAX"); ok {
		c.RateLimit.Max = v
	}
	if v, ok := getEnvDur("RATE_LIMIT_WINDOW"); ok {
		c.RateLimit.Window = v
	}
}

// Claves de config_plugins (auth_classlink) que pisan la config de archivo.
const (
	KeyAutoAppend                    = "autoappend"
	KeyTokenEndpoint                 = "tokenendpoint"
	KeyAuthEndpoint                  = "authendpoint"
	KeyClientID                      = "clientid"
	KeyClientSecret                  = "clientsecret"
	KeyResource                      = "resource"
	KeyUserRestrictions              = "userrestrictions"
	KeyUserRestrictionsCaseSensitive = "userrestrictionscasesensitive"
	KeyPreventAccountCreation        = "preventaccountcreation"
)

// ApplyPluginConfig aplica los valores guardados por el host. Los valores
// vacíos no pisan lo que ya había.
func (c *Config) ApplyPluginConfig(kv map[string]string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(kv[key]); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v := strings.TrimSpace(kv[key])
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config_plugins %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str(KeyTokenEndpoint, &c.Classlink.TokenEndpoint)
	str(KeyAuthEndpoint, &c.Classlink.AuthEndpoint)
	str(KeyClientID, &c.Classlink.ClientID)
	str(KeyClientSecret, &c.Classlink.ClientSecret)
	str(KeyResource, &c.Classlink.Resource)
	str(KeyAutoAppend, &c.Classlink.AutoAppend)
	// las restricciones son multilínea: no se recortan
	if v := kv[KeyUserRestrictions]; strings.TrimSpace(v) != "" {
		c.Classlink.UserRestrictions = v
	}
	if err := boolean(KeyUserRestrictionsCaseSensitive, &c.Classlink.UserRestrictionsCaseSensitive); err != nil {
		return err
	}
	if err := boolean(KeyPreventAccountCreation, &c.Classlink.PreventAccountCreation); err != nil {
		return err
	}
	return c.Validate()
}

// Validate chequea lo que no tiene default razonable.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Storage.Driver) {
	case "memory", "mem", "postgres", "pg", "postgresql", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver))
	}
	if lt := c.Storage.Postgres.ConnMaxLifetime; lt != "" {
		if _, err := time.ParseDuration(lt); err != nil {
			errs = append(errs, fmt.Errorf("storage.postgres.conn_max_lifetime: %w", err))
		}
	}

	switch c.Cache.Kind {
	case "memory", "none":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr: required when cache.kind=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unsupported %q", c.Cache.Kind))
	}
	if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
		errs = append(errs, fmt.Errorf("cache.memory.default_ttl: %w", err))
	}

	if ep := strings.TrimSpace(c.Classlink.TokenEndpoint); ep != "" {
		if u, err := url.Parse(ep); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("classlink.token_endpoint: invalid url %q", ep))
		}
	}
	if c.Classlink.VerifySignature && strings.TrimSpace(c.Classlink.Issuer) == "" {
		errs = append(errs, errors.New("classlink.issuer: required when verify_signature is on"))
	}

	switch c.SMTP.TLS {
	case "auto", "starttls", "ssl", "none":
	default:
		errs = append(errs, fmt.Errorf("smtp.tls: unsupported %q", c.SMTP.TLS))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Max < 1 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate_limit: max and window must be positive"))
	}
	if len(c.Alerts.To) > 0 && (c.SMTP.Host == "" || c.SMTP.From == "") {
		errs = append(errs, errors.New("alerts.to: smtp.host and smtp.from are required"))
	}
	return errors.Join(errs...)
}

// RevealSecrets descifra los valores "enc:..." (client secret, passwords,
// DSN). box puede ser nil si no hay valores cifrados.
func (c *Config) RevealSecrets(box *secretbox.Box) error {
	fields := map[string]*string{
		"storage.dsn":             &c.Storage.DSN,
		"cache.redis.password":    &c.Cache.Redis.Password,
		"classlink.client_secret": &c.Classlink.ClientSecret,
		"smtp.password":           &c.SMTP.Password,
	}
	var errs []error
	for name, dst := range fields {
		v, err := box.Reveal(*dst)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		*dst = v
	}
	return errors.Join(errs...)
}
