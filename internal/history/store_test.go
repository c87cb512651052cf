package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewStore(t *testing.T) {
	// Use temp directory for test
	tmpDir, err := os.MkdirTemp("", "shipbot-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	// Verify database file was created
	dbPath := filepath.Join(tmpDir, "shipbot.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file not created")
	}
}

func TestRecordLifecycle(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "shipbot-test-*")
	defer func() { _ = os.RemoveAll(tmpDir) }()

	store, _ := NewStore(tmpDir)
	defer func() { _ = store.Close() }()

	rec := &Record{
		ID:          "inv-1",
		Source:      "slack",
		Command:     "ci",
		Mode:        "pipeline",
		Project:     "babylonhealth/babylon-ios",
		Branch:      "develop",
		Parameters:  `{"push":false,"ui_tests":true}`,
		Status:      StatusPending,
		RequestedBy: "dev1",
		Channel:     "ios-build",
	}

	if err := store.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	retrieved, err := store.Get("inv-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.Status != StatusPending {
		t.Errorf("Expected status %q, got %q", StatusPending, retrieved.Status)
	}
	if retrieved.CompletedAt != nil {
		t.Error("Expected no completion time on a pending record")
	}
	if retrieved.Parameters != `{"push":false,"ui_tests":true}` {
		t.Errorf("Parameters not round-tripped, got %q", retrieved.Parameters)
	}

	if err := store.MarkTriggered("inv-1", "develop", "https://circleci.com/workflow-run/wf-1"); err != nil {
		t.Fatalf("MarkTriggered failed: %v", err)
	}

	retrieved, err = store.Get("inv-1")
	if err != nil {
		t.Fatalf("Get after MarkTriggered failed: %v", err)
	}
	if retrieved.Status != StatusTriggered {
		t.Errorf("Expected status %q, got %q", StatusTriggered, retrieved.Status)
	}
	if retrieved.BuildURL != "https://circleci.com/workflow-run/wf-1" {
		t.Errorf("Expected build URL, got %q", retrieved.BuildURL)
	}
	if retrieved.CompletedAt == nil {
		t.Error("Expected completion time after MarkTriggered")
	}
}

func TestMarkFailed(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "shipbot-test-*")
	defer func() { _ = os.RemoveAll(tmpDir) }()

	store, _ := NewStore(tmpDir)
	defer func() { _ = store.Close() }()

	rec := &Record{
		ID:      "inv-2",
		Source:  "github",
		Command: "fastlane",
		Mode:    "lane",
		Project: "babylonhealth/babylon-ios",
		Branch:  "feature/x",
		Status:  StatusPending,
	}
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.MarkFailed("inv-2", "provider returned status 500"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	retrieved, err := store.Get("inv-2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.Status != StatusFailed {
		t.Errorf("Expected status %q, got %q", StatusFailed, retrieved.Status)
	}
	if retrieved.Error != "provider returned status 500" {
		t.Errorf("Expected error message, got %q", retrieved.Error)
	}
}

func TestRecent(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "shipbot-test-*")
	defer func() { _ = os.RemoveAll(tmpDir) }()

	store, _ := NewStore(tmpDir)
	defer func() { _ = store.Close() }()

	for i := 1; i <= 5; i++ {
		rec := &Record{
			ID:      "inv-" + string(rune('0'+i)),
			Source:  "slack",
			Command: "ci",
			Mode:    "pipeline",
			Project: "org/repo",
			Branch:  "develop",
			Status:  StatusTriggered,
		}
		_ = store.Save(rec)
	}

	recent, err := store.Recent(3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}

	if len(recent) != 3 {
		t.Errorf("Expected 3 records, got %d", len(recent))
	}
}

func TestCountByStatus(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "shipbot-test-*")
	defer func() { _ = os.RemoveAll(tmpDir) }()

	store, _ := NewStore(tmpDir)
	defer func() { _ = store.Close() }()

	statuses := []string{StatusTriggered, StatusTriggered, StatusFailed, StatusPending}
	for i, status := range statuses {
		rec := &Record{
			ID:      "inv-" + string(rune('0'+i)),
			Source:  "cli",
			Command: "ci",
			Mode:    "pipeline",
			Project: "org/repo",
			Branch:  "develop",
			Status:  status,
		}
		_ = store.Save(rec)
	}

	counts, err := store.CountByStatus()
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}

	if counts[StatusTriggered] != 2 {
		t.Errorf("Expected 2 triggered, got %d", counts[StatusTriggered])
	}
	if counts[StatusFailed] != 1 {
		t.Errorf("Expected 1 failed, got %d", counts[StatusFailed])
	}
	if counts[StatusPending] != 1 {
		t.Errorf("Expected 1 pending, got %d", counts[StatusPending])
	}
}
