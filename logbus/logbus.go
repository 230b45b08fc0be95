// Package logbus is the Log Bus: a fire-and-forget pub/sub fan-out of
// build output, keyed by deployment id, so a dashboard or CLI can tail a
// running build without blocking the publisher.
package logbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"
)

const subscriberBufferSize = 100

// Chunk is one unit of build output delivered to subscribers.
type Chunk struct {
	DeploymentID string `json:"deploymentId"`
	Text         string `json:"text"`
}

// Bus publishes and subscribes to per-deployment log topics over Redis
// pub/sub. Publish never returns an error to the caller: logging is the
// only feedback loss gets, matching the fire-and-forget contract in §4.3.
type Bus struct {
	client *redis.Client
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *Bus {
	return &Bus{client: client, logger: logger}
}

func topic(deploymentID string) string {
	return "deployment-logs:" + deploymentID
}

// Publish delivers chunk to any subscriber currently attached to
// deploymentId's topic. Loss of a subscriber, or a Redis error, is logged
// and swallowed.
func (b *Bus) Publish(ctx context.Context, deploymentID, chunk string) {
	data, err := json.Marshal(Chunk{DeploymentID: deploymentID, Text: chunk})
	if err != nil {
		b.logger.Warn("failed to marshal log chunk", "deployment_id", deploymentID, "error", err)
		return
	}

	if err := b.client.Publish(ctx, topic(deploymentID), data).Err(); err != nil {
		b.logger.Warn("failed to publish log chunk", "deployment_id", deploymentID, "error", err)
	}
}

// Subscribe returns a channel of text chunks for deploymentId. The
// channel has a fixed buffer; once it is full, the feeder goroutine drops
// each incoming chunk and logs instead of blocking, so a slow subscriber
// sees gaps, never backpressure on the publisher.
func (b *Bus) Subscribe(ctx context.Context, deploymentID string) (<-chan string, func()) {
	pubsub := b.client.Subscribe(ctx, topic(deploymentID))
	out := make(chan string, subscriberBufferSize)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for msg := range ch {
			var c Chunk
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				continue
			}
			select {
			case out <- c.Text:
			default:
				b.logger.Warn("log bus subscriber buffer full, dropping chunk", "deployment_id", deploymentID)
			}
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return out, cancel
}

var controlBytes = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// Normalize strips NUL and control bytes out of a log blob and truncates
// it to maxChars, matching the persist contract in §4.3.
func Normalize(blob string, maxChars int) string {
	cleaned := controlBytes.ReplaceAllString(blob, "")
	if maxChars <= 0 {
		return cleaned
	}

	runes := []rune(cleaned)
	if len(runes) <= maxChars {
		return cleaned
	}
	return string(runes[:maxChars])
}

// FailureHeader formats the error-enriched log blob RECOVER writes on a
// failed deployment: a fixed header, the error message, and the
// accumulated build log, truncated to the log-size budget by the caller.
func FailureHeader(err error, buildLog string) string {
	var sb strings.Builder
	sb.WriteString("=== DEPLOYMENT FAILURE ===\n")
	fmt.Fprintf(&sb, "error: %s\n\n", err)
	sb.WriteString(buildLog)
	return sb.String()
}
