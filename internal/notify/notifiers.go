package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DBNotifier stores one in-app notification per admin.
type DBNotifier struct{ DB *gorm.DB }

func (n DBNotifier) NotifyDiscount(ctx context.Context, evt DiscountRequested) error {
	if len(evt.AdminIDs) == 0 {
		return nil
	}
	title := fmt.Sprintf("Discount %s%% on %s", evt.DiscountPercent.StringFixed(2), evt.ArticleCode)
	body := fmt.Sprintf("%s requested a %s%% discount on %s (%s) for %s %s.",
		evt.TechnicianName, evt.DiscountPercent.StringFixed(2), evt.ArticleName, evt.ArticleCode, evt.CaseType, evt.CaseID)
	rows := make([]models.Notification, len(evt.AdminIDs))
	for i, uid := range evt.AdminIDs {
		rows[i] = models.Notification{
			UserID:    uid,
			Kind:      models.NotificationKindDiscountApproval,
			Title:     title,
			Body:      body,
			Reference: strconv.FormatUint(uint64(evt.LineID), 10),
			EventID:   evt.EventID,
		}
	}
	if err := n.DB.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("store notifications: %w", err)
	}
	return nil
}

// WebhookNotifier POSTs the event as JSON.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (n *WebhookNotifier) NotifyDiscount(ctx context.Context, evt DiscountRequested) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", evt.EventID)

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// RedisNotifier publishes the event on a pub/sub channel.
type RedisNotifier struct {
	Client  *redis.Client
	Channel string
}

func (n *RedisNotifier) NotifyDiscount(ctx context.Context, evt DiscountRequested) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode redis payload: %w", err)
	}
	if err := n.Client.Publish(ctx, n.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
