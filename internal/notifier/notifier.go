// Package notifier sends best-effort operator alerts for scanner and
// dispatcher failures, generalizing the teacher's
// internal/webhooks.DeliveryService worker-pool shape around
// notifications/models.py::ErrorNotifier's Telegram-webhook wire format.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"
)

// notAllowedSymbols mirrors Notifier.not_allowed_symbols — characters
// stripped from a message before it is sent, since the upstream webhook
// chat rejects them.
const notAllowedSymbols = ":'\""

// errorTemplate mirrors ErrorNotifier.error_template exactly.
const errorTemplate = "Error has happened\n%s\nERROR MESSAGE: %s\nTRANSACTION HASH: %s\n"

// Notifier delivers sanitized alert text to a webhook endpoint through a
// bounded queue, dropping the oldest pending message rather than blocking the
// caller when the queue is full — the scanner and dispatcher hot paths must
// never stall on a slow or unreachable alerting backend.
type Notifier struct {
	webhookURL string
	client     *http.Client
	queue      chan string
	workers    int
	logger     zerolog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Notifier. queueCapacity bounds how many pending messages are
// buffered before the oldest is dropped; workers is how many goroutines
// drain the queue concurrently.
func New(webhookURL string, queueCapacity, workers int, logger zerolog.Logger) *Notifier {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 1000
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		queue:      make(chan string, queueCapacity),
		workers:    workers,
		logger:     logger.With().Str("component", "notifier").Logger(),
	}
}

// Start spawns the delivery worker pool.
func (n *Notifier) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go n.worker(ctx)
	}
}

// Stop signals every worker to drain and exit, then waits for them.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	n.wg.Wait()
}

// Notify enqueues a pre-built message for delivery, dropping the oldest
// queued message if the buffer is full.
func (n *Notifier) Notify(ctx context.Context, message string) {
	message = sanitize(message)
	select {
	case n.queue <- message:
	default:
		select {
		case dropped := <-n.queue:
			n.logger.Warn().Str("dropped_message", dropped).Msg("notifier queue full, dropping oldest message")
		default:
		}
		select {
		case n.queue <- message:
		default:
			n.logger.Warn().Str("message", message).Msg("notifier queue full, dropping message")
		}
	}
}

// NotifyError builds and enqueues the operator alert for an internal error,
// matching send_error_notification's shape: the error's Go type name, its
// argument payload (byte-slice values rendered as hex), and the transaction
// hash it was raised against.
func (n *Notifier) NotifyError(ctx context.Context, errName string, args map[string]interface{}, txHash string) {
	rendered := make(map[string]interface{}, len(args))
	for k, v := range args {
		if b, ok := v.([]byte); ok {
			rendered[k] = fmt.Sprintf("0x%x", b)
		} else {
			rendered[k] = v
		}
	}
	argsText, err := json.Marshal(rendered)
	if err != nil {
		argsText = []byte(fmt.Sprintf("%v", args))
	}
	body := fmt.Sprintf(errorTemplate, camelCaseSplit(errName), string(argsText), txHash)
	n.Notify(ctx, body)
}

func (n *Notifier) worker(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			n.drain()
			return
		case msg := <-n.queue:
			n.deliver(ctx, msg)
		}
	}
}

// drain flushes any messages still queued at shutdown, best-effort.
func (n *Notifier) drain() {
	for {
		select {
		case msg := <-n.queue:
			n.deliver(context.Background(), msg)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, message string) {
	if n.webhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to marshal notifier payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to build notifier request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to deliver notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Warn().Int("status", resp.StatusCode).Msg("notifier webhook rejected message")
	}
}

// sanitize strips characters the upstream chat backend rejects, matching
// reformat_message's character-by-character filter.
func sanitize(message string) string {
	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		if strings.ContainsRune(notAllowedSymbols, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// camelCaseSplit turns a PascalCase Go error type name into space-separated,
// upper-cased words, matching camel_case_split(error_name).upper().
func camelCaseSplit(s string) string {
	if s == "" {
		return ""
	}
	words := []string{string(s[0])}
	for _, r := range s[1:] {
		if unicode.IsUpper(r) {
			words = append(words, string(r))
		} else {
			words[len(words)-1] += string(r)
		}
	}
	return strings.ToUpper(strings.Join(words, " "))
}
