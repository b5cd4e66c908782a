package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("AI_CLUSTER_THRESHOLD")
	os.Unsetenv("AI_MODEL_TTL")

	cfg := Load()

	if cfg.API.Port != 8004 {
		t.Errorf("expected default API port 8004, got %d", cfg.API.Port)
	}

	if cfg.Cluster.Threshold != 0.6 {
		t.Errorf("expected default cluster threshold 0.6, got %f", cfg.Cluster.Threshold)
	}

	if cfg.Models.TTLSeconds != 1800 {
		t.Errorf("expected default model TTL 1800, got %d", cfg.Models.TTLSeconds)
	}

	if cfg.Worker.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.Worker.MaxRetries)
	}

	if !cfg.Faces.Enabled {
		t.Error("expected faces enabled by default")
	}

	if cfg.OCR.Mode != "auto" {
		t.Errorf("expected default OCR mode 'auto', got '%s'", cfg.OCR.Mode)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/photos")
	t.Setenv("AI_THREADS", "4")
	t.Setenv("AI_CLUSTER_THRESHOLD", "0.45")
	t.Setenv("AI_FACES_ENABLED", "false")

	cfg := Load()

	if cfg.Database.URL != "postgres://u:p@localhost:5432/photos" {
		t.Errorf("unexpected database URL '%s'", cfg.Database.URL)
	}

	if cfg.Worker.Threads != 4 {
		t.Errorf("expected 4 threads, got %d", cfg.Worker.Threads)
	}

	if cfg.Cluster.Threshold != 0.45 {
		t.Errorf("expected threshold 0.45, got %f", cfg.Cluster.Threshold)
	}

	if cfg.Faces.Enabled {
		t.Error("expected faces disabled")
	}
}

func TestLoad_ZeroThreadsIsValid(t *testing.T) {
	// 0 means auto, must not fall back to a default
	t.Setenv("AI_THREADS", "0")

	cfg := Load()

	if cfg.Worker.Threads != 0 {
		t.Errorf("expected threads 0 (auto), got %d", cfg.Worker.Threads)
	}
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("API_PORT", "not-a-number")

	cfg := Load()

	if cfg.API.Port != 8004 {
		t.Errorf("expected fallback port 8004 for invalid input, got %d", cfg.API.Port)
	}
}

func TestLoad_NegativeInt(t *testing.T) {
	t.Setenv("AI_MAX_RETRIES", "-1")

	cfg := Load()

	if cfg.Worker.MaxRetries != 3 {
		t.Errorf("expected fallback max retries 3 for negative input, got %d", cfg.Worker.MaxRetries)
	}
}

func TestEnvBool_Variants(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"off", false},
		{"garbage", true}, // falls back to default (true)
	}

	for _, tc := range cases {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("AI_AUTO_START", tc.value)
			cfg := Load()
			if cfg.Worker.AutoStart != tc.want {
				t.Errorf("AI_AUTO_START=%q: expected %v, got %v", tc.value, tc.want, cfg.Worker.AutoStart)
			}
		})
	}
}
