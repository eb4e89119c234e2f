// internal/engine/providers/httpsource.go
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	commonhttp "application-engine/internal/common/http"
	"application-engine/internal/models"
)

// HTTPSource adapts a JSON endpoint into a data provider. The endpoint
// receives the application id and applicant subject in headers and
// responds with the payload to store under the declared data key.
func HTTPSource(client *commonhttp.Client, url, apiKey string) Provider {
	return func(ctx context.Context, app *models.Application) (interface{}, error) {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Application-Id", app.ID)
		req.Header.Set("X-Subject-Id", app.CreatedBy)
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := client.DoWithContext(ctx, req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
		}

		var payload interface{}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("failed to decode source response: %w", err)
		}
		return payload, nil
	}
}

