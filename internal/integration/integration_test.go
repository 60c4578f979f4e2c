package integration

import (
	"errors"
	"testing"
)

func TestParseConfig_Decode(t *testing.T) {
	cfg, err := ParseConfig("plugin: dummy\ndevices:\n  lamp:\n    name: Lamp\n")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.IsZero() {
		t.Fatal("IsZero() = true, want false")
	}

	var body struct {
		Plugin  string `yaml:"plugin"`
		Devices map[string]struct {
			Name string `yaml:"name"`
		} `yaml:"devices"`
	}
	if err := cfg.Decode(&body); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if body.Plugin != "dummy" {
		t.Errorf("Plugin = %q, want %q", body.Plugin, "dummy")
	}
	if body.Devices["lamp"].Name != "Lamp" {
		t.Errorf("Devices[lamp].Name = %q, want %q", body.Devices["lamp"].Name, "Lamp")
	}
}

func TestConfig_DecodeTypeMismatch(t *testing.T) {
	cfg, err := ParseConfig("interval: [1, 2]\n")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	var body struct {
		Interval int `yaml:"interval"`
	}
	err = cfg.Decode(&body)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Decode() error = %v, want ErrInvalidConfig", err)
	}
}

func TestConfig_ZeroDecode(t *testing.T) {
	var cfg Config
	if !cfg.IsZero() {
		t.Fatal("IsZero() = false for zero Config")
	}

	body := struct{ Name string }{Name: "kept"}
	if err := cfg.Decode(&body); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if body.Name != "kept" {
		t.Errorf("Name = %q, want %q", body.Name, "kept")
	}
}

func TestID_String(t *testing.T) {
	if got := ID("lights").String(); got != "lights" {
		t.Errorf("String() = %q, want %q", got, "lights")
	}
}
