package config

import (
	"strings"
	"testing"
	"time"
)

// env builds a LookupFunc over fixed values plus the minimum required set.
func env(vars map[string]string) LookupFunc {
	base := map[string]string{
		"DATABASE_URL": "postgres://localhost/test",
		"API_KEYS":     "key-one",
	}
	for k, v := range vars {
		base[k] = v
	}
	return func(key string) (string, bool) {
		v, ok := base[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(env(nil))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Upload.MaxFileSize != 26214400 {
		t.Errorf("Upload.MaxFileSize = %d, want 26214400", cfg.Upload.MaxFileSize)
	}
	if cfg.Import.TaxonomyFailure != "abort" {
		t.Errorf("Import.TaxonomyFailure = %q, want abort", cfg.Import.TaxonomyFailure)
	}
	if !cfg.Import.StrictGate {
		t.Error("Import.StrictGate should default to true")
	}
	if !cfg.Security.RequireAPIKey {
		t.Error("Security.RequireAPIKey should default to true")
	}
	if cfg.Images.Enabled() {
		t.Error("images should be disabled without a bucket")
	}
	if cfg.Shop.Dir != "data/shop" {
		t.Errorf("Shop.Dir = %q, want data/shop", cfg.Shop.Dir)
	}
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"SERVER_PORT":             "9090",
		"DATABASE_DRIVER":         "sqlite",
		"DATABASE_URL":            "catalog.db",
		"IMPORT_TAXONOMY_FAILURE": "isolate",
		"IMPORT_STRICT_GATE":      "false",
		"UPLOAD_TIMEOUT":          "90s",
		"CORS_ALLOWED_ORIGINS":    "https://shop.example.com, https://admin.example.com ,",
		"IMAGES_S3_BUCKET":        "product-images",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.URL != "catalog.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Import.TaxonomyFailure != "isolate" || cfg.Import.StrictGate {
		t.Errorf("Import = %+v", cfg.Import)
	}
	if cfg.Upload.Timeout != 90*time.Second {
		t.Errorf("Upload.Timeout = %v, want 90s", cfg.Upload.Timeout)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.Security.AllowedOrigins)
	}
	if !cfg.Images.Enabled() {
		t.Error("images should be enabled with a bucket")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	lookup := func(key string) (string, bool) {
		switch key {
		case "DB_URL":
			return "postgres://localhost/alt", true
		case "REQUIRE_API_KEY":
			return "false", true
		}
		return "", false
	}

	cfg, err := LoadFrom(lookup)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/alt" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantMsg string
	}{
		{name: "missing database url", vars: map[string]string{"DATABASE_URL": ""}, wantMsg: "DATABASE_URL is not set"},
		{name: "bad integer", vars: map[string]string{"SERVER_PORT": "eighty"}, wantMsg: "invalid integer"},
		{name: "bad duration", vars: map[string]string{"UPLOAD_TIMEOUT": "soon"}, wantMsg: "invalid duration"},
		{name: "bad port", vars: map[string]string{"SERVER_PORT": "70000"}, wantMsg: "SERVER_PORT (70000)"},
		{name: "bad driver", vars: map[string]string{"DATABASE_DRIVER": "mysql"}, wantMsg: "DATABASE_DRIVER"},
		{name: "bad policy", vars: map[string]string{"IMPORT_TAXONOMY_FAILURE": "retry"}, wantMsg: "IMPORT_TAXONOMY_FAILURE"},
		{name: "conns", vars: map[string]string{"DB_MAX_CONNS": "2", "DB_MIN_CONNS": "5"}, wantMsg: "DB_MAX_CONNS (2) must be >= DB_MIN_CONNS (5)"},
		{name: "api key required", vars: map[string]string{"API_KEYS": ""}, wantMsg: "API_KEYS is empty"},
		{name: "log level", vars: map[string]string{"LOG_LEVEL": "loud"}, wantMsg: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(env(tt.vars))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := LoadFrom(env(nil))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"", 3000, ":3000"},
		{"::1", 443, "[::1]:443"},
	}
	for _, tt := range tests {
		c := ServerConfig{Host: tt.host, Port: tt.port}
		if got := c.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{"DATABASE_URL": "postgres://user:secret@db/catalog"}))
	if err != nil {
		t.Fatal(err)
	}
	s := cfg.String()
	if strings.Contains(s, "secret") || strings.Contains(s, "key-one") {
		t.Errorf("String() leaks secrets: %s", s)
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want masked URL", s)
	}
}
