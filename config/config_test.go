package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.conf")
	content := `# comment
network = testnet
db.backend = "memory"

pending.maxsize = 42
log.json = yes
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig: %v", err)
	}

	if cfg.Network != Testnet {
		t.Errorf("network = %s, want testnet", cfg.Network)
	}
	if cfg.DB.Backend != BackendMemory {
		t.Errorf("backend = %s, want memory (quotes stripped)", cfg.DB.Backend)
	}
	if cfg.Pending.MaxSize != 42 {
		t.Errorf("pending.maxsize = %d, want 42", cfg.Pending.MaxSize)
	}
	if !cfg.Log.JSON {
		t.Error("log.json should be true")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "absent.conf"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(values) != 0 {
		t.Error("missing file should yield no values")
	}
}

func TestLoadFile_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("no equals sign\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestApplyFileConfig_BadNumber(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{"pending.maxsize": "lots"})
	if err == nil {
		t.Error("expected error for non-numeric pending.maxsize")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad network", mutate: func(c *Config) { c.Network = "devnet" }, wantErr: true},
		{name: "bad backend", mutate: func(c *Config) { c.DB.Backend = "sqlite" }, wantErr: true},
		{name: "negative pool", mutate: func(c *Config) { c.Pending.MaxSize = -1 }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "badger needs datadir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: true},
		{name: "memory without datadir", mutate: func(c *Config) {
			c.DataDir = ""
			c.DB.Backend = BackendMemory
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTestnet()
			cfg.DataDir = t.TempDir()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := DefaultMainnet()
	cfg.DataDir = t.TempDir()
	cfg.DB.Backend = ""
	cfg.Pending.MaxSize = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.DB.Backend != BackendBadger {
		t.Errorf("backend = %q, want badger", cfg.DB.Backend)
	}
	if cfg.Pending.MaxSize != DefaultPendingSize {
		t.Errorf("pending.maxsize = %d, want %d", cfg.Pending.MaxSize, DefaultPendingSize)
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{"--testnet", "--db", "memory", "--log-json=false", "status"}, io.Discard)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if f.Network != string(Testnet) {
		t.Errorf("network = %q, want testnet", f.Network)
	}
	if !f.SetLogJSON || f.LogJSON {
		t.Error("explicit --log-json=false should be recorded")
	}
	if len(f.Args) != 1 || f.Args[0] != "status" {
		t.Errorf("args = %v, want [status]", f.Args)
	}

	cfg := DefaultMainnet()
	cfg.Log.JSON = true
	ApplyFlags(cfg, f)
	if cfg.Network != Testnet || cfg.DB.Backend != BackendMemory || cfg.Log.JSON {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestParseFlags_Help(t *testing.T) {
	_, err := ParseFlags([]string{"--bogus"}, io.Discard)
	if err == nil {
		t.Error("unknown flag should fail")
	}
	f, err := ParseFlags([]string{"-h"}, io.Discard)
	if err != nil && !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("ParseFlags: %v", err)
	}
	if err == nil && !f.Help {
		t.Error("-h should request help")
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "custom.conf")
	os.WriteFile(conf, []byte("pending.maxsize = 7\nlog.level = warn\n"), 0644)

	cfg, _, err := Load([]string{"--datadir", dir, "--config", conf, "--log-level", "debug"}, io.Discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pending.MaxSize != 7 {
		t.Errorf("file value not applied: pending.maxsize = %d", cfg.Pending.MaxSize)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("flag should override file: log.level = %s", cfg.Log.Level)
	}
	if _, err := os.Stat(cfg.LedgerDir()); err != nil {
		t.Errorf("ledger dir not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ledger.conf")); err != nil {
		t.Errorf("default config not written: %v", err)
	}
}
