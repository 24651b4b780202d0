package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// maxBufferedRecords bounds the webhook buffer; the oldest records are dropped first.
const maxBufferedRecords = 1000

// Logger is the interface for application-wide logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	FlushWebhook() error
}

// webhookEntry is the JSON form of one buffered record.
type webhookEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type webhookPayload struct {
	AppName     string         `json:"app_name"`
	Environment string         `json:"environment"`
	Logs        []webhookEntry `json:"logs"`
}

// hybridLogger outputs to stdout in real-time and buffers logs for webhook.
type hybridLogger struct {
	stdoutHandler *slog.JSONHandler
	webhookBuffer []slog.Record
	mu            sync.Mutex
	minLevel      Level
	webhookURL    string
	appName       string
	env           string
	client        *http.Client
}

// NewHybridLogger creates a new hybrid logger.
func NewHybridLogger(cfg Config) Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &hybridLogger{
		stdoutHandler: slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slogLevel(cfg.Level)}),
		minLevel:      cfg.Level,
		webhookURL:    cfg.WebhookURL,
		appName:       cfg.AppName,
		env:           cfg.Environment,
		client:        client,
	}
}

// sendToWebhook posts the records as one JSON document.
func sendToWebhook(client *http.Client, webhookURL, appName, env string, logs []slog.Record) error {
	payload := webhookPayload{AppName: appName, Environment: env, Logs: make([]webhookEntry, 0, len(logs))}
	for _, rec := range logs {
		payload.Logs = append(payload.Logs, toWebhookEntry(rec))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send logs to webhook: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", res.StatusCode)
	}
	return nil
}

func toWebhookEntry(rec slog.Record) webhookEntry {
	entry := webhookEntry{Time: rec.Time, Level: levelFromSlog(rec.Level).String(), Message: rec.Message}
	if rec.NumAttrs() == 0 {
		return entry
	}
	entry.Attrs = make(map[string]any, rec.NumAttrs())
	rec.Attrs(func(a slog.Attr) bool {
		v := a.Value.Resolve().Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry.Attrs[a.Key] = v
		return true
	})
	return entry
}

// slogLevel converts our Level to slog.Level
func slogLevel(lvl Level) slog.Level {
	switch lvl {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *hybridLogger) log(level slog.Level, msg string, args ...interface{}) {
	if levelFromSlog(level) < h.minLevel {
		return
	}
	rec := slog.NewRecord(time.Now(), level, msg, 0)
	rec.Add(args...)
	_ = h.stdoutHandler.Handle(context.Background(), rec)
	if h.webhookURL != "" {
		h.mu.Lock()
		defer h.mu.Unlock()
		if len(h.webhookBuffer) >= maxBufferedRecords {
			h.webhookBuffer = h.webhookBuffer[1:]
		}
		h.webhookBuffer = append(h.webhookBuffer, rec.Clone())
	}
}

func (h *hybridLogger) Debug(msg string, args ...interface{}) { h.log(slog.LevelDebug, msg, args...) }
func (h *hybridLogger) Info(msg string, args ...interface{})  { h.log(slog.LevelInfo, msg, args...) }
func (h *hybridLogger) Warn(msg string, args ...interface{})  { h.log(slog.LevelWarn, msg, args...) }
func (h *hybridLogger) Error(msg string, args ...interface{}) { h.log(slog.LevelError, msg, args...) }

// FlushWebhook sends all buffered records and empties the buffer.
func (h *hybridLogger) FlushWebhook() error {
	if h.webhookURL == "" {
		return nil
	}
	h.mu.Lock()
	if len(h.webhookBuffer) == 0 {
		h.mu.Unlock()
		return nil
	}
	logs := h.webhookBuffer
	h.webhookBuffer = nil
	h.mu.Unlock()
	return sendToWebhook(h.client, h.webhookURL, h.appName, h.env, logs)
}

// levelFromSlog converts slog.Level to our Level type
func levelFromSlog(lvl slog.Level) Level {
	switch lvl {
	case slog.LevelDebug:
		return LevelDebug
	case slog.LevelWarn:
		return LevelWarn
	case slog.LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}
