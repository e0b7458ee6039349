package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"loyalty-points-system/models"
	"loyalty-points-system/services"
	"loyalty-points-system/utils"

	"github.com/sethvargo/go-retry"
)

// OutboxDispatcher drains the notification outbox and hands each row to the
// external push/email dispatcher. Delivery mechanics live entirely on the
// other side of the HTTP call; this worker only guarantees at-least-once
// handoff with bounded per-row attempts.
type OutboxDispatcher struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Notify     *services.NotifyService
	Config     services.LoyaltyConfig
}

func NewOutboxDispatcher(notify *services.NotifyService, cfg services.LoyaltyConfig) *OutboxDispatcher {
	baseURL := os.Getenv("NOTIFY_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("NOTIFY_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("LOYALTY_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("LOYALTY_SERVICE_TOKEN environment variable is required for outbox dispatch")
	}

	return &OutboxDispatcher{
		BaseURL:    baseURL,
		Token:      token,
		Notify:     notify,
		Config:     cfg,
		HTTPClient: utils.HTTPClient,
	}
}

type dispatchPayload struct {
	UserID    string `json:"user_id,omitempty"`
	SendToAll bool   `json:"send_to_all,omitempty"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

func (d *OutboxDispatcher) send(ctx context.Context, row models.NotificationOutbox) error {
	payload := dispatchPayload{
		UserID:    row.ExternalUserID,
		SendToAll: row.ExternalUserID == "",
		Kind:      row.Kind,
		Title:     row.Title,
		Body:      row.Body,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.BaseURL+"/api/v1/notifications/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", d.Token)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("failed to call notify service: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return retry.RetryableError(fmt.Errorf("notify service returned status %d: %s", resp.StatusCode, string(b)))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify service rejected notification (%d): %s", resp.StatusCode, string(b))
	}
	return nil
}

// PollOutbox drains pending notification rows on an interval.
func PollOutbox(ctx context.Context, d *OutboxDispatcher, pollInterval time.Duration) {
	log.Println("Starting notification outbox worker...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Outbox worker stopped.")
			return
		case <-ticker.C:
			rows, err := d.Notify.PendingBatch(d.Config.OutboxBatchSize)
			if err != nil {
				log.Printf("❌ [Outbox] Error fetching pending batch: %v", err)
				continue
			}
			if len(rows) == 0 {
				continue
			}
			log.Printf("📥 [Outbox] Dispatching %d pending notification(s)", len(rows))

			for _, row := range rows {
				backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
				err := retry.Do(ctx, backoff, func(ctx context.Context) error {
					return d.send(ctx, row)
				})
				if err != nil {
					log.Printf("❌ [Outbox] Delivery failed for %s (%s): %v", row.ID, row.Kind, err)
					if merr := d.Notify.MarkAttemptFailed(row.ID, err, d.Config.OutboxMaxAttempts); merr != nil {
						log.Printf("[Outbox] Failed to record attempt for %s: %v", row.ID, merr)
					}
					continue
				}
				if err := d.Notify.MarkSent(row.ID); err != nil {
					log.Printf("[Outbox] Failed to mark %s sent: %v", row.ID, err)
				}
			}
		}
	}
}
