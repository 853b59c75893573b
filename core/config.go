package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug        bool
		TestMode     bool
		AppName      string
		Env          string
		Build        string
		RollbarToken string

		Server    ServerConfig
		Database  DatabaseConfig
		Supabase  SupabaseConfig
		Providers ProvidersConfig
		Gateway   GatewayConfig
		Alerts    AlertsConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		BodyLimit       string
		ShutdownTimeout time.Duration
		// StrictStatus maps denials and failures to 4xx/5xx codes instead of the legacy always-200.
		StrictStatus   bool
		AllowedOrigins []string
		DisableReqLogs bool
	}

	DatabaseConfig struct {
		Engine       string
		Host         string
		Port         string
		Name         string
		User         string
		Password     string
		DisableTLS   bool
		MaxOpenConns int
	}

	SupabaseConfig struct {
		URL     string
		AnonKey string
		// JWTSecret enables local session verification; when empty, sessions are checked against the auth server.
		JWTSecret string
	}

	ProvidersConfig struct {
		SambanovaKey        string
		SambanovaURL        string
		HFToken             string
		HFURL               string
		GithubToken         string
		GithubURL           string
		CloudflareAccountID string
		CloudflareToken     string
		CloudflareURL       string
		SerperKey           string
		SerperURL           string
	}

	GatewayConfig struct {
		EliteTiers       []string
		TierAliases      map[string]string
		VaultThreshold   float64
		VaultLimit       int
		WebResults       int
		WebRegion        string
		MaxTokens        int
		PlannerMaxTokens int
		ImageSteps       int
		ImageStyle       string
		VisualKeywords   []string
		UpstreamTimeout  time.Duration
		ImageTimeout     time.Duration
	}

	AlertsConfig struct {
		Enabled     bool
		To          []string
		Interval    time.Duration
		SendgridKey string
		FromEmail   string
	}
)

// Address returns the database "host:port".
func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Secrets returns every system-owned credential, for redaction.
func (c *Config) Secrets() []string {
	p := c.Providers
	candidates := []string{
		p.SambanovaKey, p.HFToken, p.GithubToken, p.CloudflareToken, p.SerperKey,
		c.Supabase.AnonKey, c.Supabase.JWTSecret, c.Database.Password, c.Alerts.SendgridKey, c.RollbarToken,
	}
	secrets := make([]string, 0, len(candidates))
	for _, s := range candidates {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Margdarshak")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.bodyLimit", "10M")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.strictStatus", false)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 10)

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anonKey", "")
	v.SetDefault("supabase.jwtSecret", "")

	v.SetDefault("providers.sambanovaKey", "")
	v.SetDefault("providers.sambanovaURL", "https://api.sambanova.ai/v1/chat/completions")
	v.SetDefault("providers.hfToken", "")
	v.SetDefault("providers.hfURL", "https://api-inference.huggingface.co/models")
	v.SetDefault("providers.githubToken", "")
	v.SetDefault("providers.githubURL", "https://models.inference.ai.azure.com/chat/completions")
	v.SetDefault("providers.cloudflareAccountID", "")
	v.SetDefault("providers.cloudflareToken", "")
	v.SetDefault("providers.cloudflareURL", "https://api.cloudflare.com/client/v4/accounts")
	v.SetDefault("providers.serperKey", "")
	v.SetDefault("providers.serperURL", "https://google.serper.dev/search")

	v.SetDefault("gateway.eliteTiers", []string{"premium+ai"})
	v.SetDefault("gateway.tierAliases", map[string]string{
		"extra_plus":   "premium+ai",
		"premium_ai":   "premium+ai",
		"premium_plus": "premium+ai",
		"premium + ai": "premium+ai",
	})
	v.SetDefault("gateway.vaultThreshold", 0.25)
	v.SetDefault("gateway.vaultLimit", 6)
	v.SetDefault("gateway.webResults", 3)
	v.SetDefault("gateway.webRegion", "in")
	v.SetDefault("gateway.maxTokens", 2000)
	v.SetDefault("gateway.plannerMaxTokens", 150)
	v.SetDefault("gateway.imageSteps", 4)
	v.SetDefault("gateway.imageStyle", "scientific diagram, textbook style, white background")
	v.SetDefault("gateway.visualKeywords", []string{"draw", "diagram", "image"})
	v.SetDefault("gateway.upstreamTimeout", 30*time.Second)
	v.SetDefault("gateway.imageTimeout", 60*time.Second)

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.to", []string{})
	v.SetDefault("alerts.interval", 30*time.Minute)
	v.SetDefault("alerts.sendgridKey", "")
	v.SetDefault("alerts.fromEmail", "noreply@localhost")
}

// NewConfig loads the process-wide configuration.
// Values come from defaults, then config/.env.<env> (if present), then the environment (prefixed by ENV).
func NewConfig() *Config {
	conf, err := LoadConfig(Getwd())
	if err != nil {
		log.Fatalf("%+v", err)
	}
	return conf
}

// LoadConfig is NewConfig with an explicit project root.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "QA", "PROD":
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(root, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	conf.Env = env
	conf.Gateway.TierAliases = v.GetStringMapString("gateway.tierAliases")
	return conf, nil
}
