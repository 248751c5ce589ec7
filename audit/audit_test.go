package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	appconfig "tradelink/config"
	"tradelink/models"
)

func trailConfig(path string) *appconfig.Config {
	return &appconfig.Config{Audit: appconfig.AuditConfig{Path: path}}
}

func sampleReport(orderID int64, symbol string) models.OrderReport {
	return models.OrderReport{
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      "BUY",
		Status:    "NEW",
		Quantity:  "0.040",
		Timestamp: time.Now().UTC(),
	}
}

func TestRecordCreatesFileOnDemand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "orders.json")
	trail, err := NewTrail(trailConfig(path))
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}

	if err := trail.Record(sampleReport(1, "BTCUSDT")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("audit file was not created: %v", err)
	}
}

func TestRecordAppendsWellFormedArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	trail, err := NewTrail(trailConfig(path))
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}

	for i, symbol := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		if err := trail.Record(sampleReport(int64(i+1), symbol)); err != nil {
			t.Fatalf("Record %s: %v", symbol, err)
		}

		// the file must be a valid JSON array after every append
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading audit file: %v", err)
		}
		var reports []models.OrderReport
		if err := json.Unmarshal(data, &reports); err != nil {
			t.Fatalf("audit file is not a JSON array after append %d: %v", i+1, err)
		}
		if len(reports) != i+1 {
			t.Fatalf("audit file has %d records after append %d", len(reports), i+1)
		}
	}

	reports, err := trail.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if reports[0].Symbol != "BTCUSDT" || reports[2].Symbol != "SOLUSDT" {
		t.Error("append order was not preserved")
	}
	if reports[1].OrderID != 2 {
		t.Errorf("order id = %d want 2", reports[1].OrderID)
	}
}

func TestRecordsEmptyBeforeFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.json")
	trail, err := NewTrail(trailConfig(path))
	if err != nil {
		t.Fatalf("NewTrail: %v", err)
	}
	reports, err := trail.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("expected empty history, got %d records", len(reports))
	}
}

func TestMirrorKey(t *testing.T) {
	cases := []struct {
		prefix, path, want string
	}{
		{"", "audit/orders.json", "orders.json"},
		{"tradelink/", "orders.json", "tradelink/orders.json"},
		{"/a/b/", "audit/orders.json", "a/b/orders.json"},
	}
	for _, c := range cases {
		if got := mirrorKey(c.prefix, c.path); got != c.want {
			t.Errorf("mirrorKey(%q, %q) = %q want %q", c.prefix, c.path, got, c.want)
		}
	}
}
