package audit_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

func sampleEntry(action models.AuditAction) *models.AuditLog {
	return &models.AuditLog{
		ID:        uuid.New(),
		ActorID:   uuid.New(),
		Action:    action,
		TableName: models.TableShop,
		RecordID:  uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// ---------------------------------------------------------------------------
// MultiShipper
// ---------------------------------------------------------------------------

func TestNewMultiShipper_Empty(t *testing.T) {
	ms, err := audit.NewMultiShipper(nil)
	if err != nil {
		t.Fatalf("NewMultiShipper(nil) error: %v", err)
	}
	if ms.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ms.Len())
	}
	if err := ms.Ship(context.Background(), sampleEntry(models.AuditActionLogin)); err != nil {
		t.Errorf("Ship() on empty multi-shipper = %v, want nil", err)
	}
	if err := ms.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestNewMultiShipper_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  audit.ShipperConfig
	}{
		{"unknown type", audit.ShipperConfig{Enabled: true, Type: "syslog"}},
		{"webhook without config", audit.ShipperConfig{Enabled: true, Type: "webhook"}},
		{"file without config", audit.ShipperConfig{Enabled: true, Type: "file"}},
		{"webhook without url", audit.ShipperConfig{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := audit.NewMultiShipper([]audit.ShipperConfig{tt.cfg}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestNewMultiShipper_DisabledConfigSkipped(t *testing.T) {
	ms, err := audit.NewMultiShipper([]audit.ShipperConfig{
		{Enabled: false, Type: "webhook", Webhook: &audit.WebhookConfig{URL: "http://example.com"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ms.Len())
	}
}

func TestMultiShipper_ContinuesAfterShipperError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	path := filepath.Join(t.TempDir(), "audit.log")
	ms, err := audit.NewMultiShipper([]audit.ShipperConfig{
		{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{URL: failing.URL}},
		{Enabled: true, Type: "file", File: &audit.FileConfig{Path: path}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ms.Close()

	if err := ms.Ship(context.Background(), sampleEntry(models.AuditActionStatusChange)); err == nil {
		t.Error("expected joined error from failing webhook")
	}
	data, _ := os.ReadFile(path)
	if len(data) == 0 {
		t.Error("file shipper should still receive the entry")
	}
}

// ---------------------------------------------------------------------------
// WebhookShipper
// ---------------------------------------------------------------------------

func TestWebhookShipper_ShipEntry(t *testing.T) {
	var got models.AuditLog
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL, Headers: map[string]string{"X-Api-Key": "k"}})
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}
	defer ws.Close()

	entry := sampleEntry(models.AuditActionApprovalApplied)
	if err := ws.Ship(context.Background(), entry); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if got.ID != entry.ID || got.Action != models.AuditActionApprovalApplied {
		t.Errorf("received %+v", got)
	}
	if header != "k" {
		t.Errorf("custom header = %q, want k", header)
	}
}

func TestWebhookShipper_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL})
	defer ws.Close()
	if err := ws.Ship(context.Background(), sampleEntry(models.AuditActionLogin)); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestWebhookShipper_BatchFlushOnSize(t *testing.T) {
	var mu sync.Mutex
	var batches [][]models.AuditLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var b []models.AuditLog
		_ = json.Unmarshal(body, &b)
		mu.Lock()
		batches = append(batches, b)
		mu.Unlock()
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL, BatchSize: 2, FlushInterval: time.Hour})
	defer ws.Close()

	for i := 0; i < 2; i++ {
		if err := ws.Ship(context.Background(), sampleEntry(models.AuditActionUpdate)); err != nil {
			t.Fatalf("Ship: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Errorf("batches = %v, want one batch of 2", batches)
	}
}

func TestWebhookShipper_BatchFlushOnClose(t *testing.T) {
	received := make(chan int, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b []models.AuditLog
		_ = json.NewDecoder(r.Body).Decode(&b)
		received <- len(b)
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL, BatchSize: 10, FlushInterval: time.Hour})
	_ = ws.Ship(context.Background(), sampleEntry(models.AuditActionCreate))
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case n := <-received:
		if n != 1 {
			t.Errorf("flushed %d entries, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not flushed on Close")
	}
}

// ---------------------------------------------------------------------------
// FileShipper
// ---------------------------------------------------------------------------

func TestFileShipper_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	fs, err := audit.NewFileShipper(&audit.FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}

	for _, a := range []models.AuditAction{models.AuditActionCreate, models.AuditActionDelete} {
		if err := fs.Ship(context.Background(), sampleEntry(a)); err != nil {
			t.Fatalf("Ship: %v", err)
		}
	}
	_ = fs.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var actions []models.AuditAction
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e models.AuditLog
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		actions = append(actions, e.Action)
	}
	if len(actions) != 2 || actions[1] != models.AuditActionDelete {
		t.Errorf("actions = %v", actions)
	}
}

func TestNewFileShipper_InvalidPath(t *testing.T) {
	if _, err := audit.NewFileShipper(&audit.FileConfig{Path: filepath.Join(t.TempDir(), "missing", "audit.log")}); err == nil {
		t.Error("expected error for a path in a missing directory")
	}
}

func TestFileShipper_Rotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	// Pre-fill past the 1MB threshold so the next Ship rotates.
	if err := os.WriteFile(path, make([]byte, 1024*1024+1), 0o600); err != nil {
		t.Fatal(err)
	}

	fs, err := audit.NewFileShipper(&audit.FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}
	defer fs.Close()

	if err := fs.Ship(context.Background(), sampleEntry(models.AuditActionLogin)); err != nil {
		t.Fatalf("Ship: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("backup not created: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() > 4096 {
		t.Errorf("new file size = %d, want a single entry", info.Size())
	}
}
