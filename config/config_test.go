package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Thresholds.WarningHealth != 70 || cfg.Thresholds.CriticalHealth != 50 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if cfg.Admission.MaxOpenAnomalyOrders != 2 {
		t.Errorf("anomaly cap = %d, want 2", cfg.Admission.MaxOpenAnomalyOrders)
	}
	if cfg.Audit.Capacity != 100 {
		t.Errorf("audit capacity = %d, want 100", cfg.Audit.Capacity)
	}
	if len(cfg.Seed.Technicians) != 3 {
		t.Errorf("technicians = %d, want 3", len(cfg.Seed.Technicians))
	}
	if _, ok := cfg.Lookups.Spares["Main Spindle"]; !ok {
		t.Error("spares map missing Main Spindle")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Web.Port != 8085 {
		t.Errorf("port = %d, want default 8085", cfg.Web.Port)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maintcore.yaml")
	data := []byte(`
thresholds:
  warning_health: 75
admission:
  max_open_anomaly_orders: 5
messaging:
  backend: mqtt
lookups:
  commitments:
    - vendor: Natoli
      part_number: PNC-D-24
      delivery: 2026-03-09T00:00:00Z
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Thresholds.WarningHealth != 75 {
		t.Errorf("warning health = %v, want 75", cfg.Thresholds.WarningHealth)
	}
	// Unset keys keep their defaults.
	if cfg.Thresholds.CriticalHealth != 50 {
		t.Errorf("critical health = %v, want default 50", cfg.Thresholds.CriticalHealth)
	}
	if cfg.Admission.MaxOpenAnomalyOrders != 5 {
		t.Errorf("cap = %d, want 5", cfg.Admission.MaxOpenAnomalyOrders)
	}
	if cfg.Messaging.Backend != "mqtt" {
		t.Errorf("backend = %q", cfg.Messaging.Backend)
	}
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if len(cfg.Lookups.Commitments) != 1 || !cfg.Lookups.Commitments[0].Delivery.Equal(want) {
		t.Errorf("commitments = %+v", cfg.Lookups.Commitments)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("thresholds: [unclosed"), 0644)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Defaults()
	cfg.Web.Port = 9000
	cfg.Redis.TTL = time.Hour
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Web.Port != 9000 {
		t.Errorf("port = %d, want 9000", got.Web.Port)
	}
	if got.Redis.TTL != time.Hour {
		t.Errorf("ttl = %v, want 1h", got.Redis.TTL)
	}
	if len(got.Seed.Spares) != len(cfg.Seed.Spares) {
		t.Errorf("spares = %d, want %d", len(got.Seed.Spares), len(cfg.Seed.Spares))
	}
}
