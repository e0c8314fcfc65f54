package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"carelink/services/api/internal/healthexport"
)

// importWebhookNotifier posts a summary of each finished import to a
// configured endpoint, so caregivers' dashboards can refresh without polling.
type importWebhookNotifier struct {
	webhookURL string
	authHeader string
	client     *http.Client
}

func newImportWebhookNotifier(webhookURL, authHeader string) *importWebhookNotifier {
	return &importWebhookNotifier{
		webhookURL: strings.TrimSpace(webhookURL),
		authHeader: strings.TrimSpace(authHeader),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *importWebhookNotifier) enabled() bool {
	return n != nil && n.webhookURL != ""
}

func (n *importWebhookNotifier) notifyImportCompleted(ctx context.Context, run healthexport.ImportRun) error {
	if !n.enabled() {
		return nil
	}

	payload := map[string]any{
		"event":  "import_completed",
		"sentAt": time.Now().UTC().Format(time.RFC3339),
		"userId": run.UserID,
		"run": map[string]any{
			"id":     run.ID,
			"state":  string(run.State),
			"report": run.Report,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if n.authHeader != "" {
		request.Header.Set("Authorization", n.authHeader)
	}

	response, err := n.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		rawBody, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("webhook status=%d body=%s", response.StatusCode, strings.TrimSpace(string(rawBody)))
	}

	return nil
}
