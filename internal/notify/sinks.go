package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Config selects the enabled sinks. An empty config yields a LogSink only.
type Config struct {
	RedisURL     string            `mapstructure:"redis_url"`
	RedisChannel string            `mapstructure:"redis_channel"`
	WebhookURL   string            `mapstructure:"webhook_url"`
	Headers      map[string]string `mapstructure:"headers"`
	Timeout      time.Duration     `mapstructure:"timeout"`
}

// New builds the sinks enabled in cfg. The returned close function releases their connections.
func New(cfg Config, logger *slog.Logger) (Sink, func() error, error) {
	sinks := []Sink{NewLogSink(logger)}
	closeFn := func() error { return nil }

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid notifications redis url: %w", err)
		}
		client := redis.NewClient(opts)
		sinks = append(sinks, NewRedisSink(client, cfg.RedisChannel))
		closeFn = client.Close
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, cfg.Headers, cfg.Timeout))
	}

	if len(sinks) == 1 {
		return sinks[0], closeFn, nil
	}
	return Multi(sinks...), closeFn, nil
}

// LogSink writes events to the structured log
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Publish implements Sink
func (s *LogSink) Publish(ctx context.Context, e Event) error {
	attrs := []any{"event_id", e.ID, "event_type", e.Type, "actor_id", e.ActorID, "subject", e.Subject}
	if e.ShopID != nil {
		attrs = append(attrs, "shop_id", *e.ShopID)
	}
	s.logger.InfoContext(ctx, "event", attrs...)
	return nil
}

// DefaultRedisChannel is used when no channel is configured
const DefaultRedisChannel = "shopdesk.events"

// RedisSink publishes events as JSON on a redis pub/sub channel
type RedisSink struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisSink creates a RedisSink on channel
func NewRedisSink(client redis.UniversalClient, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel}
}

// Publish implements Sink
func (s *RedisSink) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", s.channel, err)
	}
	return nil
}

// WebhookSink POSTs each event as JSON
type WebhookSink struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookSink creates a WebhookSink. timeout defaults to 10s.
func NewWebhookSink(url string, headers map[string]string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSink{url: url, headers: headers, client: &http.Client{Timeout: timeout}}
}

// Publish implements Sink
func (s *WebhookSink) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopdesk-Event", string(e.Type))
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

type multiSink []Sink

// Multi publishes to every sink concurrently and returns the first failure
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Publish(ctx context.Context, e Event) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m {
		g.Go(func() error {
			return s.Publish(ctx, e)
		})
	}
	return g.Wait()
}
