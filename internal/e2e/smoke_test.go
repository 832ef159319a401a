//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("MIRROR_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3210"
	}

	// Wait for server readiness (up to 30s)
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Fprintf(os.Stderr, "server at %s not ready after 30s\n", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func getBody(t *testing.T, path string, v interface{}) {
	t.Helper()
	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, string(raw))
	}
}

func TestProfileSnapshot(t *testing.T) {
	var snapshot map[string]interface{}
	getBody(t, "/api/profile/smoke-test", &snapshot)
	if snapshot["config_version"] == "" {
		t.Error("expected a config_version in the snapshot")
	}
	if snapshot["cognitive_snapshot"] == nil {
		t.Error("expected a cognitive_snapshot in the snapshot")
	}
}

func TestWeeklyInsights(t *testing.T) {
	var report map[string]interface{}
	getBody(t, "/api/insights/smoke-test/weekly", &report)
	if report["summary"] == "" {
		t.Error("expected a non-empty weekly summary")
	}
}

func TestQuizQuestions(t *testing.T) {
	var body struct {
		Cards []map[string]interface{} `json:"cards"`
	}
	getBody(t, "/api/quiz/smoke-test/smoke-contact/questions", &body)
	if len(body.Cards) != 5 {
		t.Errorf("expected 5 base cards, got %d", len(body.Cards))
	}
}

func TestWimtsGenerate(t *testing.T) {
	payload, _ := json.Marshal(map[string]string{
		"user_id":     "smoke-test",
		"intake_text": "why don't you ever listen to me",
	})
	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Post(baseURL+"/api/wimts/generate", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /api/wimts/generate: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	var result struct {
		Variants []map[string]string `json:"what_i_meant_variants"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, string(raw))
	}
	if len(result.Variants) == 0 {
		t.Error("expected at least one variant")
	}
	t.Logf("variants: %d", len(result.Variants))
}
