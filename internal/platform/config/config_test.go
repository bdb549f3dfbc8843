package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.RemoteBackend != RemoteNone {
		t.Errorf("Store.RemoteBackend = %q, want %q", cfg.Store.RemoteBackend, RemoteNone)
	}
	if cfg.Store.Path == "" {
		t.Error("Store.Path is empty")
	}
	if cfg.Course.TotalUnits != 21 {
		t.Errorf("Course.TotalUnits = %d, want 21", cfg.Course.TotalUnits)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRACK_SERVER_PORT", "9999")
	t.Setenv("TRACK_REMOTE_BACKEND", "postgres")
	t.Setenv("TRACK_STORE_PATH", "/var/lib/trackd/progress.json")
	t.Setenv("TRACK_COURSE_TOTAL_UNITS", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Store.RemoteBackend != RemotePostgres {
		t.Errorf("Store.RemoteBackend = %q, want postgres", cfg.Store.RemoteBackend)
	}
	if cfg.Store.Path != "/var/lib/trackd/progress.json" {
		t.Errorf("Store.Path = %q, want /var/lib/trackd/progress.json", cfg.Store.Path)
	}
	if cfg.Course.TotalUnits != 30 {
		t.Errorf("Course.TotalUnits = %d, want 30", cfg.Course.TotalUnits)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("TRACK_SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want fallback 8080", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, _ := Load()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"postgres backend", func(c *Config) { c.Store.RemoteBackend = RemotePostgres }, false},
		{"redis backend", func(c *Config) { c.Store.RemoteBackend = RemoteRedis }, false},
		{"unknown backend", func(c *Config) { c.Store.RemoteBackend = "dynamo" }, true},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, true},
		{"postgres without url", func(c *Config) {
			c.Store.RemoteBackend = RemotePostgres
			c.Database.URL = ""
		}, true},
		{"redis without url", func(c *Config) {
			c.Store.RemoteBackend = RemoteRedis
			c.Cache.URL = ""
		}, true},
		{"negative total units", func(c *Config) { c.Course.TotalUnits = -1 }, true},
		{"zero total units ok", func(c *Config) { c.Course.TotalUnits = 0 }, false},
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
