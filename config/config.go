// Package config carrega a configuração do gateway a partir do ambiente
// (variáveis MCD_*) com suporte opcional a um arquivo .env.
//
// A struct Config é construída uma única vez no main e injetada nos
// componentes; nenhum pacote lê env por conta própria.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

func (e Environment) IsProduction() bool { return e == Production }

type RateBucket struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

type Config struct {
	Env        Environment `koanf:"env"`
	ListenAddr string      `koanf:"listen_addr"`

	// Identidade / sessão
	SessionSecret     string `koanf:"session_secret"`
	SessionCookieName string `koanf:"session_cookie_name"`

	// CSRF
	CSRFCookieName string `koanf:"csrf_cookie_name"`
	CSRFHeaderName string `koanf:"csrf_header_name"`

	// CORS (lista separada por vírgula em MCD_ALLOWED_ORIGINS)
	AllowedOrigins []string `koanf:"-"`

	// Rate limiting
	RateStore     string `koanf:"rate_store"` // "redis", "memory" ou vazio (política de fallback)
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	RateAPI       RateBucket `koanf:"rate_api"`
	RateWrite     RateBucket `koanf:"rate_write"`
	RateAutoClaim RateBucket `koanf:"rate_autoclaim"`

	ConcurrencyMax     int           `koanf:"concurrency_max"`
	ConcurrencyTimeout time.Duration `koanf:"concurrency_timeout"`

	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// Upstream MCP
	MCPBaseURL  string        `koanf:"mcp_base_url"`
	MCPToken    string        `koanf:"mcp_token"`
	MCPTimeout  time.Duration `koanf:"mcp_timeout"`
	MCPRPS      float64       `koanf:"mcp_rps"`
	MCPBurst    int           `koanf:"mcp_burst"`
	MCPCacheTTL time.Duration `koanf:"mcp_cache_ttl"`

	// Logging
	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`
}

func Default() Config {
	return Config{
		Env:                Development,
		ListenAddr:         ":8080",
		SessionCookieName:  "session-token",
		CSRFCookieName:     "csrf-secret",
		CSRFHeaderName:     "X-CSRF-Token",
		AllowedOrigins:     []string{"http://localhost:3000"},
		RateAPI:            RateBucket{Limit: 100, Window: time.Minute},
		RateWrite:          RateBucket{Limit: 10, Window: time.Minute},
		RateAutoClaim:      RateBucket{Limit: 5, Window: time.Hour},
		ConcurrencyMax:     0,
		ConcurrencyTimeout: 0,
		MaxBodyBytes:       1 << 20, // 1 MiB
		MCPTimeout:         15 * time.Second,
		MCPRPS:             5,
		MCPBurst:           10,
		MCPCacheTTL:        30 * time.Second,
		LogLevel:           "info",
	}
}

const envPrefix = "MCD_"

// Load lê .env (se existir) e depois o ambiente, por cima dos defaults.
func Load() (Config, error) {
	return load(".env")
}

func load(dotenvPath string) (Config, error) {
	k := koanf.New(".")

	// MCD_RATE_WRITE__LIMIT → rate_write.limit (duplo underscore aninha)
	trim := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}

	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if err := k.Load(file.Provider(dotenvPath), dotenv.ParserEnv(envPrefix, ".", trim)); err != nil {
				return Config{}, fmt.Errorf("config: loading %s: %w", dotenvPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", trim), nil); err != nil {
		return Config{}, fmt.Errorf("config: loading env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if raw := strings.TrimSpace(k.String("allowed_origins")); raw != "" {
		origins := make([]string, 0, 4)
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Env {
	case Development, Production:
	default:
		return fmt.Errorf("config: unknown env %q (use %q or %q)", c.Env, Development, Production)
	}

	if c.MCPBaseURL == "" {
		return errors.New("config: MCD_MCP_BASE_URL is required")
	}
	if c.Env.IsProduction() && c.SessionSecret == "" {
		return errors.New("config: MCD_SESSION_SECRET is required in production")
	}
	if c.RateStore == "redis" && c.RedisAddr == "" {
		return errors.New("config: MCD_REDIS_ADDR is required when MCD_RATE_STORE=redis")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("config: MCD_MAX_BODY_BYTES must be > 0")
	}
	for _, b := range []RateBucket{c.RateAPI, c.RateWrite, c.RateAutoClaim} {
		if b.Limit <= 0 || b.Window <= 0 {
			return errors.New("config: rate bucket limit and window must be > 0")
		}
	}
	return nil
}
