package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Enabled {
		t.Error("Database.Enabled should default to false")
	}
	if cfg.Estimator.SeasonWeight != 40 || cfg.Estimator.SoilWeight != 30 || cfg.Estimator.TemperatureWeight != 30 {
		t.Errorf("Estimator weights = %+v", cfg.Estimator)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "*" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("CROP_SERVER_PORT", "9090")
	t.Setenv("CROP_DATABASE_ENABLED", "true")
	t.Setenv("CROP_DATABASE_HOST", "db.internal")
	t.Setenv("CROP_DATABASE_CONN_MAX_LIFETIME", "10m")
	t.Setenv("CROP_LOGGING_LEVEL", "debug")
	t.Setenv("CROP_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if !cfg.Database.Enabled || cfg.Database.Host != "db.internal" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.ConnMaxLifetime != 10*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want 10m", cfg.Database.ConnMaxLifetime)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadFrom_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crop.yaml")
	content := `
server:
  port: 7070
catalog:
  path: /etc/crop/catalog.csv
estimator:
  season_weight: 50
  soil_weight: 25
  temperature_weight: 25
price_board:
  url: https://mandi.example/prices
  max_retries: 5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CROP_SERVER_PORT", "7171")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 7171 {
		t.Errorf("env should win over file: Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Catalog.Path != "/etc/crop/catalog.csv" {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
	if cfg.Estimator.SeasonWeight != 50 {
		t.Errorf("SeasonWeight = %v, want 50", cfg.Estimator.SeasonWeight)
	}
	if cfg.PriceBoard.MaxRetries != 5 || cfg.PriceBoard.Timeout != 10*time.Second {
		t.Errorf("PriceBoard = %+v", cfg.PriceBoard)
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for an explicit missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadFrom("")
		if err != nil {
			t.Fatalf("LoadFrom() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: true},
		{name: "db enabled without host", mutate: func(c *Config) {
			c.Database.Enabled = true
			c.Database.Host = ""
		}, wantErr: true},
		{name: "db disabled ignores host", mutate: func(c *Config) { c.Database.Host = "" }},
		{name: "unknown log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: true},
		{name: "weights do not sum to 100", mutate: func(c *Config) { c.Estimator.SeasonWeight = 10 }, wantErr: true},
		{name: "negative weight", mutate: func(c *Config) {
			c.Estimator.SeasonWeight = 110
			c.Estimator.SoilWeight = -10
		}, wantErr: true},
		{name: "negative reload interval", mutate: func(c *Config) { c.Catalog.ReloadInterval = -time.Second }, wantErr: true},
		{name: "negative recommend limit", mutate: func(c *Config) { c.Estimator.RecommendLimit = -1 }, wantErr: true},
		{name: "rate limit without burst", mutate: func(c *Config) { c.RateLimit.Burst = 0 }, wantErr: true},
		{name: "rate limit disabled", mutate: func(c *Config) {
			c.RateLimit.Enabled = false
			c.RateLimit.Burst = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_PostgresConfig(t *testing.T) {
	d := DatabaseConfig{
		Host:           "db.internal",
		Port:           6432,
		User:           "crop",
		Password:       "secret",
		Database:       "crops",
		SSLMode:        "require",
		MaxOpenConns:   10,
		ConnectTimeout: 5 * time.Second,
		ConnectRetries: 2,
	}

	pg := d.PostgresConfig()
	if pg.Host != "db.internal" || pg.Port != 6432 || pg.Database != "crops" || pg.SSLMode != "require" {
		t.Errorf("PostgresConfig() = %+v", pg)
	}
	if pg.MaxOpenConns != 10 || pg.ConnectTimeout != 5*time.Second || pg.ConnectRetries != 2 {
		t.Errorf("pool settings not carried over: %+v", pg)
	}
}

func TestEstimatorConfig_Weights(t *testing.T) {
	w := EstimatorConfig{SeasonWeight: 50, SoilWeight: 25, TemperatureWeight: 25}.Weights()
	if w.Season != 50 || w.Soil != 25 || w.Temperature != 25 {
		t.Errorf("Weights() = %+v", w)
	}
	if err := w.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
