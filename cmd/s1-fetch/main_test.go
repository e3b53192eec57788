package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Sparda104/scholarone-api-v5/pkg/chunking"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("S1_FETCH_TEST_KEY", "value")
	if got := getEnv("S1_FETCH_TEST_KEY", "fallback"); got != "value" {
		t.Errorf("getEnv() = %s, want value", got)
	}
	if got := getEnv("S1_FETCH_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %s, want fallback", got)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("S1_USERNAME", "user")
	t.Setenv("S1_API_KEY", "key")
	t.Setenv("S1_SITE", "acme")
	t.Setenv("S1_IDS", "100,101,102")

	cfg := loadConfig()
	if cfg.Username != "user" || cfg.APIKey != "key" || cfg.Site != "acme" {
		t.Errorf("credentials not loaded: %+v", cfg)
	}
	if cfg.EndpointID != "4" {
		t.Errorf("EndpointID = %s, want the default", cfg.EndpointID)
	}
	if len(cfg.IDs) != 3 || cfg.IDs[1] != "101" {
		t.Errorf("IDs = %v", cfg.IDs)
	}
	if cfg.Output != "export.csv" {
		t.Errorf("Output = %s, want the default", cfg.Output)
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler := promhttp.Handler()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "# HELP") || !strings.Contains(string(body), "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
}

func TestWriteOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	rows := []chunking.Record{
		{"Journal": "acme", "submissionId": "100"},
		{"Journal": "acme", "submissionId": "101"},
	}

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	if err := writeOutput(path, rows, logger); err != nil {
		t.Fatalf("writeOutput() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "Journal,") {
		t.Errorf("Journal must lead the header: %q", content)
	}
	if !strings.Contains(content, "100") || !strings.Contains(content, "101") {
		t.Errorf("rows missing: %q", content)
	}
}
