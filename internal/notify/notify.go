// Package notify pushes premium trade alerts to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/signal"
)

// Config holds ntfy notification configuration.
type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
	Token    string `mapstructure:"token"`
}

// Client implements the ntfy notification client.
type Client struct {
	httpClient *http.Client
	config     *Config
	logger     *zap.Logger
}

func NewClient(cfg *Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

var _ signal.Notifier = (*Client)(nil)

// NotifyAlert sends one generated alert.
func (c *Client) NotifyAlert(ctx context.Context, alert signal.Alert) error {
	if !c.config.Enabled {
		return nil
	}

	title := fmt.Sprintf("%s %s (%s)", alert.Symbol, alert.Strategy, alert.QualityLevel)
	return c.send(ctx, title, FormatAlertMessage(alert), c.config.Tags+",chart_with_upwards_trend", c.config.Priority)
}

func (c *Client) send(ctx context.Context, title, message, tags, priority string) error {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.config.Server, "/"), c.config.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification", zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent", zap.String("title", title))
	return nil
}

// FormatAlertMessage creates the notification body for an alert.
func FormatAlertMessage(alert signal.Alert) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Expiration: %s\n", alert.Expiration))
	for _, leg := range alert.Legs {
		sb.WriteString(fmt.Sprintf("%s %s %g @ %.2f\n", leg.Action, leg.Type, leg.Strike, leg.Price))
	}
	sb.WriteString(fmt.Sprintf("Credit: %.2f  Max Loss: %.2f\n", alert.NetCredit, alert.MaxLoss))
	sb.WriteString(fmt.Sprintf("Probability: %.0f%%  Quality: %d (%s)  Risk: %s",
		alert.Probability, alert.QualityScore, alert.QualityLevel, alert.RiskLevel))

	return sb.String()
}

// NoopNotifier is a no-op implementation for when notifications are
// disabled.
type NoopNotifier struct{}

func (NoopNotifier) NotifyAlert(context.Context, signal.Alert) error { return nil }
