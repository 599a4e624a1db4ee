package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/networkbuster/aidefense/internal/models"
)

// StoreAlert writes the alert under alert:<id> with the retention window as
// TTL and indexes it in the active set. Called on admission and again after
// response execution, so re-storing an existing alert is expected.
func (c *Client) StoreAlert(ctx context.Context, alert *models.Alert, retention time.Duration) error {
	alertKey := fmt.Sprintf("alert:%s", alert.ID)

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := c.rdb.Set(ctx, alertKey, data, retention).Err(); err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}

	activeKey := fmt.Sprintf("alerts:kind:%s", alert.Kind)
	if err := c.rdb.SAdd(ctx, activeKey, alert.ID).Err(); err != nil {
		return fmt.Errorf("failed to add to kind set: %w", err)
	}

	return nil
}

// GetAlert fetches an archived alert by id.
func (c *Client) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	alertKey := fmt.Sprintf("alert:%s", id)

	data, err := c.rdb.Get(ctx, alertKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	var alert models.Alert
	if err := json.Unmarshal([]byte(data), &alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
	}

	return &alert, nil
}

// AddToBlocklist records an origin blocked by the block_access action.
func (c *Client) AddToBlocklist(ctx context.Context, origin string) error {
	if err := c.rdb.SAdd(ctx, "defense:blocklist", origin).Err(); err != nil {
		return fmt.Errorf("failed to add to blocklist: %w", err)
	}

	return nil
}

// AppendIncident appends an incident record to the audit log list.
func (c *Client) AppendIncident(ctx context.Context, alert *models.Alert, action string) error {
	incident := map[string]interface{}{
		"alert_id":   alert.ID,
		"kind":       alert.Kind,
		"confidence": alert.Confidence,
		"origin":     alert.Origin,
		"action":     action,
		"logged_at":  time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	if err := c.rdb.RPush(ctx, "defense:incidents", data).Err(); err != nil {
		return fmt.Errorf("failed to append incident: %w", err)
	}

	return nil
}
