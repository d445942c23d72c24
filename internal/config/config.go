// Package config loads and validates application configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Output  OutputConfig            `mapstructure:"output"`
	HTTP    HTTPConfig              `mapstructure:"http"`
	Summary SummaryConfig           `mapstructure:"summary"`
	Server  ServerConfig            `mapstructure:"server"`
	Storage StorageConfig           `mapstructure:"storage"`
	Logging LoggingConfig           `mapstructure:"logging"`
	Bot     BotConfig               `mapstructure:"bot"`
	Sources map[string]SourceConfig `mapstructure:"sources"`
}

// OutputConfig sets where result files are written.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Subdir string `mapstructure:"subdir"`
}

// HTTPConfig configures the fetch client and its retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
	DelayMs          int    `mapstructure:"delay_ms"`
	UserAgent        string `mapstructure:"user_agent"`
}

// SummaryConfig governs the investment scope summary writer.
type SummaryConfig struct {
	// MinProjects is the minimum merged row count required before a run is
	// recorded in the summary CSV. Zero disables the guard.
	MinProjects int `mapstructure:"min_projects"`
}

// ServerConfig controls HTTP server behavior for the web UI.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// StorageConfig selects the optional run archive backend.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BotConfig holds defaults for the scheduled runner.
type BotConfig struct {
	ScheduleTime string `mapstructure:"schedule_time"`
}

// SourceConfig describes one scrape target.
type SourceConfig struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	FeedURL string `mapstructure:"feed_url"`
	Country string `mapstructure:"country"`
	Enabled bool   `mapstructure:"enabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.subdir", "uk")

	v.SetDefault("http.timeout_seconds", 45)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.delay_ms", 500)
	v.SetDefault("http.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("summary.min_projects", 50)
	v.SetDefault("server.port", 5000)
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.table", "bess_projects")
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("logging.development", true)
	v.SetDefault("bot.schedule_time", "06:00")

	setSourceDefaults(v)
}

// setSourceDefaults registers every known scrape target. All sources ship
// enabled; individual ones can be switched off in the config file.
func setSourceDefaults(v *viper.Viper) {
	type def struct {
		key, name, url, feed, country string
	}
	defs := []def{
		{
			key:  "edf_re_uk",
			name: "EDF Renewables UK & Ireland – Battery Storage",
			url:  "https://www.edf-re.uk/our-sites/?view=list&project_types=battery-storage",
		},
		{
			key:  "british_renewables",
			name: "British Solar Renewables – UK Battery Storage",
			url:  "https://britishrenewables.com/projects/battery-bess-projects",
		},
		{
			key:  "root_power",
			name: "Root Power – BESS Projects",
			url:  "https://www.root-power.com/our-projects/",
		},
		{
			key:  "fidra_energy",
			name: "Fidra Energy – UK Energy Storage",
			url:  "https://fidraenergy.com/our-projects/",
		},
		{
			key:  "sse_renewables",
			name: "SSE Renewables – Battery Storage",
			url:  "https://www.sserenewables.com/our-sites/",
		},
		{
			key:  "uk_repd",
			name: "DESNZ – Renewable Energy Planning Database (REPD)",
			url:  "https://www.gov.uk/government/publications/renewable-energy-planning-database-monthly-extract",
		},
		{
			key:  "tec_register",
			name: "NESO – TEC Register (Transmission Entry Capacity)",
			url:  "https://www.nationalgrideso.com/data-portal/transmission-entry-capacity-tec-register",
		},
		{
			key:  "pins_nsip",
			name: "Planning Inspectorate – NSIP (Nationally Significant Infrastructure)",
			url:  "https://national-infrastructure-consenting.planninginspectorate.gov.uk/project-search",
		},
		{
			key:  "ecr_ukpn",
			name: "UK Power Networks – Embedded Capacity Register (ECR)",
			url:  "https://ukpowernetworks.opendatasoft.com/explore/dataset/ukpn-embedded-capacity-register",
		},
		{
			key:  "energy_storage_news",
			name: "Energy-Storage.news – UK BESS news",
			url:  "https://www.energy-storage.news/category/news/",
			feed: "https://www.energy-storage.news/feed/",
		},
		{
			key:  "solar_power_portal",
			name: "Solar Power Portal – UK battery storage",
			url:  "https://www.solarpowerportal.co.uk/",
			feed: "https://www.solarpowerportal.co.uk/feed/",
		},
		{
			key:     "eirgrid",
			name:    "EirGrid – Connected & Contracted Generators (Ireland)",
			url:     "https://www.eirgrid.ie/industry/customer-information/connected-and-contracted-generators",
			country: "Ireland",
		},
	}
	for _, d := range defs {
		country := d.country
		if country == "" {
			country = "UK"
		}
		v.SetDefault("sources."+d.key+".name", d.name)
		v.SetDefault("sources."+d.key+".url", d.url)
		v.SetDefault("sources."+d.key+".country", country)
		v.SetDefault("sources."+d.key+".enabled", true)
		if d.feed != "" {
			v.SetDefault("sources."+d.key+".feed_url", d.feed)
		}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent must be set")
	}
	if c.Summary.MinProjects < 0 {
		return fmt.Errorf("summary.min_projects must be >= 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Provider {
	case "noop", "postgres":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	if c.Storage.Provider == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn must be set when storage.provider is postgres")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
