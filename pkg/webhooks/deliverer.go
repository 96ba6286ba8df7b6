package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/n-sumanth-bhat/product-importer-fulfil-task/pkg/common/httpclient"
)

// Deliverer performs a single HTTP POST delivery and reports the outcome. The
// same delivery path serves both async dispatch and the synchronous test
// endpoint; only the caller differs.
type Deliverer struct {
	client  *http.Client
	maxBody int
}

func NewDeliverer(timeout time.Duration, maxBody int) *Deliverer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 500
	}
	return &Deliverer{
		client:  httpclient.New(timeout),
		maxBody: maxBody,
	}
}

func (d *Deliverer) Deliver(ctx context.Context, wh Webhook, payload map[string]interface{}) DeliveryAttempt {
	attempt := DeliveryAttempt{WebhookID: wh.ID}

	body, err := json.Marshal(payload)
	if err != nil {
		attempt.Error = fmt.Sprintf("encoding payload: %v", err)
		return attempt
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		attempt.Error = fmt.Sprintf("building request: %v", err)
		return attempt
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range wh.Headers {
		req.Header.Set(key, fmt.Sprint(value))
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	attempt.ResponseTime = time.Since(start).Seconds()

	if err != nil {
		attempt.Error = err.Error()
		return attempt
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	attempt.StatusCode = &code
	attempt.Success = code < 400

	truncated, err := io.ReadAll(io.LimitReader(resp.Body, int64(d.maxBody)))
	if err == nil {
		attempt.ResponseBody = string(truncated)
	}

	return attempt
}

// TestPayload is what Test sends when the caller supplies no record.
func TestPayload() map[string]interface{} {
	return map[string]interface{}{
		"event":     "test",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   "This is a test webhook",
	}
}
