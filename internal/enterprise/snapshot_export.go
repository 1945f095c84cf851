// Package enterprise pushes dashboard snapshots to external analytics
// endpoints for customers that mirror the metrics into their own
// systems.
package enterprise

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/tokendash/internal/model"
)

// ExporterConfig holds configuration for snapshot exporting.
type ExporterConfig struct {
	Enabled        bool          `json:"enabled"`
	BatchSize      int           `json:"batch_size"`
	ExportInterval time.Duration `json:"export_interval"`
	WebhookURL     string        `json:"webhook_url"`
	WebhookAPIKey  string        `json:"webhook_api_key,omitempty"`
}

// SnapshotExporter batches assembled dashboard payloads and ships them
// to a webhook endpoint, either when the batch fills or on a timer.
type SnapshotExporter struct {
	config     ExporterConfig
	httpClient *http.Client

	mutex      sync.Mutex
	batch      []snapshot
	lastExport time.Time

	exportCtx    context.Context
	exportCancel context.CancelFunc
}

type snapshot struct {
	Payload    model.Payload `json:"payload"`
	CapturedAt time.Time     `json:"captured_at"`
}

// NewSnapshotExporter creates a snapshot exporter. A disabled config
// yields a no-op exporter.
func NewSnapshotExporter(config ExporterConfig) *SnapshotExporter {
	if !config.Enabled {
		return &SnapshotExporter{config: config}
	}

	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.ExportInterval <= 0 {
		config.ExportInterval = time.Minute
	}

	exporter := &SnapshotExporter{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				IdleConnTimeout: 90 * time.Second,
			},
		},
		batch: make([]snapshot, 0, config.BatchSize),
	}

	exporter.exportCtx, exporter.exportCancel = context.WithCancel(context.Background())
	go exporter.periodicExport()

	logrus.Info("Snapshot exporter initialized")
	return exporter
}

// Add queues an assembled dashboard payload for export.
func (e *SnapshotExporter) Add(payload model.Payload) {
	if !e.config.Enabled || len(payload) == 0 {
		return
	}

	e.mutex.Lock()
	e.batch = append(e.batch, snapshot{Payload: payload, CapturedAt: time.Now().UTC()})
	full := len(e.batch) >= e.config.BatchSize
	e.mutex.Unlock()

	if full {
		go e.export()
	}
}

// periodicExport flushes the batch on a timer until Stop is called.
func (e *SnapshotExporter) periodicExport() {
	ticker := time.NewTicker(e.config.ExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.export()
		case <-e.exportCtx.Done():
			return
		}
	}
}

// export ships the current batch to the webhook.
func (e *SnapshotExporter) export() {
	e.mutex.Lock()
	if len(e.batch) == 0 {
		e.mutex.Unlock()
		return
	}
	snapshots := e.batch
	e.batch = make([]snapshot, 0, e.config.BatchSize)
	e.lastExport = time.Now()
	e.mutex.Unlock()

	if err := e.postWebhook(snapshots); err != nil {
		logrus.Errorf("Failed to export snapshots: %v", err)
		return
	}
	logrus.Infof("Exported %d dashboard snapshots", len(snapshots))
}

func (e *SnapshotExporter) postWebhook(snapshots []snapshot) error {
	if e.config.WebhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	exportData := struct {
		Snapshots  []snapshot `json:"snapshots"`
		ExportTime string     `json:"export_time"`
		Count      int        `json:"count"`
	}{
		Snapshots:  snapshots,
		ExportTime: time.Now().UTC().Format(time.RFC3339),
		Count:      len(snapshots),
	}

	jsonData, err := json.Marshal(exportData)
	if err != nil {
		return fmt.Errorf("marshaling snapshots: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.config.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Stop flushes remaining snapshots and halts the background export.
func (e *SnapshotExporter) Stop() {
	if e.exportCancel != nil {
		e.exportCancel()
	}
	e.export()
}

// Status reports the exporter state for /status.
func (e *SnapshotExporter) Status() map[string]any {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	status := map[string]any{
		"enabled":       e.config.Enabled,
		"batch_size":    e.config.BatchSize,
		"current_batch": len(e.batch),
	}
	if !e.lastExport.IsZero() {
		status["last_export"] = e.lastExport.Format(time.RFC3339)
	}
	return status
}
