package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "MOCK" {
		t.Fatalf("mode = %q, want MOCK", cfg.Mode)
	}
	if cfg.PollInterval != time.Minute {
		t.Fatalf("poll interval = %v", cfg.PollInterval)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"gdacs", "eonet", "nws"}) {
		t.Fatalf("sources = %v", cfg.Sources)
	}
	if cfg.MaxPayout != 10000 || cfg.InitialBalance != 10000 {
		t.Fatalf("payout defaults: %v / %v", cfg.MaxPayout, cfg.InitialBalance)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen = %q", cfg.ListenAddr)
	}
}

func TestLoadFromFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("mode", "MOCK", "")
	flags.Float64("max-payout", 10000, "")
	flags.StringSlice("source", nil, "")
	if err := flags.Parse([]string{"--mode=live", "--max-payout=2500", "--source=gdacs,nws"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "LIVE" {
		t.Fatalf("mode = %q, want LIVE (case-normalized)", cfg.Mode)
	}
	if cfg.MaxPayout != 2500 {
		t.Fatalf("max payout = %v", cfg.MaxPayout)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"gdacs", "nws"}) {
		t.Fatalf("sources = %v", cfg.Sources)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "mode: MOCK\nmax-payout: 7500\nsource: gdacs, eonet\nlisten: \":9090\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPayout != 7500 {
		t.Fatalf("max payout = %v", cfg.MaxPayout)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"gdacs", "eonet"}) {
		t.Fatalf("sources = %v", cfg.Sources)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("listen = %q", cfg.ListenAddr)
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("mode", "MOCK", "")
	if err := flags.Parse([]string{"--mode=dry-run"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if _, err := Load("", flags); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestSplitAndClean(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , ,b ", []string{"a", "b"}},
		{"", nil},
		{",,", []string{}},
	}
	for _, tc := range cases {
		got := splitAndClean(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("splitAndClean(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("splitAndClean(%q) = %v, want %v", tc.in, got, tc.want)
			}
		}
	}
}
