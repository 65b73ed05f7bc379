package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPOCRClient starts document analysis on an external OCR service.
// The service answers immediately with a job id and publishes an
// OCR-done notification when the analysis finishes.
type HTTPOCRClient struct {
	baseURL string
	httpc   *http.Client
}

func NewHTTPOCRClient(baseURL string) *HTTPOCRClient {
	return &HTTPOCRClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPOCRClient) StartAnalysis(ctx context.Context, bucket, key string) (string, error) {
	body, err := json.Marshal(map[string]string{"bucket": bucket, "key": key})
	if err != nil {
		return "", fmt.Errorf("marshal OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("start analysis for gs://%s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("OCR service returned %d for gs://%s/%s", resp.StatusCode, bucket, key)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode OCR response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("OCR service returned empty job id")
	}
	return out.JobID, nil
}
