// shipper.go forwards committed audit entries to destinations outside the database: an append-only
// JSON-lines file with size-based rotation, or an HTTP webhook (optionally batched) feeding a SIEM.
// Shipping happens after commit and never affects the transaction that produced the entry.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/safego"
)

// Shipper sends committed entries to an external destination
type Shipper interface {
	Ship(ctx context.Context, entry *models.AuditLog) error
	Close() error
}

// ShipperConfig selects and configures one destination
type ShipperConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Type    string         `mapstructure:"type"` // webhook | file
	Webhook *WebhookConfig `mapstructure:"webhook"`
	File    *FileConfig    `mapstructure:"file"`
}

// WebhookConfig configures a WebhookShipper
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
	// BatchSize > 0 buffers entries and posts them as a JSON array
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// FileConfig configures a FileShipper
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// MultiShipper fans an entry out to several shippers
type MultiShipper struct {
	shippers []Shipper
}

// NewMultiShipper builds the enabled shippers of configs
func NewMultiShipper(configs []ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var (
			s   Shipper
			err error
		)
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook config is required for webhook shipper")
			}
			s, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file config is required for file shipper")
			}
			s, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type: %s", cfg.Type)
		}
		if err != nil {
			_ = ms.Close()
			return nil, fmt.Errorf("failed to create %s shipper: %w", cfg.Type, err)
		}
		ms.shippers = append(ms.shippers, s)
	}
	return ms, nil
}

// Len reports how many shippers are active
func (ms *MultiShipper) Len() int { return len(ms.shippers) }

// Ship sends the entry to every shipper and joins their errors
func (ms *MultiShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	var errs []error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every shipper
func (ms *MultiShipper) Close() error {
	var errs []error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WebhookShipper posts entries to an HTTP endpoint
type WebhookShipper struct {
	cfg    WebhookConfig
	client *http.Client

	mu      sync.Mutex
	batch   []*models.AuditLog
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewWebhookShipper creates a WebhookShipper. With batching enabled a background flusher runs
// until Close.
func NewWebhookShipper(cfg *WebhookConfig) (*WebhookShipper, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook url is required")
	}
	c := *cfg
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}

	ws := &WebhookShipper{
		cfg:     c,
		client:  &http.Client{Timeout: c.Timeout},
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	if c.BatchSize > 0 {
		safego.Go("audit-webhook-flush", ws.flushLoop)
	} else {
		close(ws.done)
	}
	return ws, nil
}

func (ws *WebhookShipper) flushLoop() {
	defer close(ws.done)
	ticker := time.NewTicker(ws.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ws.flush()
		case <-ws.closeCh:
			ws.flush()
			return
		}
	}
}

func (ws *WebhookShipper) flush() {
	ws.mu.Lock()
	pending := ws.batch
	ws.batch = nil
	ws.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	data, err := json.Marshal(pending)
	if err != nil {
		slog.Error("failed to marshal audit batch", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ws.cfg.Timeout)
	defer cancel()
	if err := ws.post(ctx, data); err != nil {
		slog.Error("failed to send audit batch", "entries", len(pending), "error", err)
	}
}

// Ship posts the entry, or queues it when batching is enabled
func (ws *WebhookShipper) Ship(ctx context.Context, entry *models.AuditLog) error {
	if ws.cfg.BatchSize > 0 {
		ws.mu.Lock()
		ws.batch = append(ws.batch, entry)
		full := len(ws.batch) >= ws.cfg.BatchSize
		ws.mu.Unlock()
		if full {
			ws.flush()
		}
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	return ws.post(ctx, data)
}

func (ws *WebhookShipper) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close flushes pending entries and stops the flusher
func (ws *WebhookShipper) Close() error {
	ws.once.Do(func() { close(ws.closeCh) })
	<-ws.done
	return nil
}

// FileShipper appends entries as JSON lines
type FileShipper struct {
	cfg  FileConfig
	mu   sync.Mutex
	file *os.File
}

// NewFileShipper opens (or creates) the target file in append mode
func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	if cfg.Path == "" {
		return nil, errors.New("file path is required")
	}
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileShipper{cfg: *cfg, file: f}, nil
}

// Ship writes one line per entry, rotating first when the file exceeds MaxSizeMB
func (fs *FileShipper) Ship(_ context.Context, entry *models.AuditLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		if info, err := fs.file.Stat(); err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				return fmt.Errorf("failed to rotate audit log: %w", err)
			}
		}
	}

	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// rotate shifts path.N to path.N+1, drops the oldest backup and reopens path
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}
	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	if fs.cfg.MaxBackups > 0 {
		_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	} else {
		_ = os.Remove(fs.cfg.Path)
	}

	f, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	fs.file = f
	return nil
}

// Close closes the file
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
