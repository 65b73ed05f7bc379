// Package outbound delivers resolved words back to the gateway's push
// endpoint. Cloud Tasks provides durable, queue-level-retried delivery;
// when it is not configured (local dev) a direct HTTP POST is used
// instead.
package outbound

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"

	"github.com/glossa/backend/internal/events"
)

// Dispatcher fans resolved words out to the push worker URL. Delivery
// is fire-and-forget: a dropped word is gone, the client's next word
// still arrives.
type Dispatcher struct {
	client    *cloudtasks.Client
	queuePath string
	pushURL   string
	httpc     *http.Client
	logger    *log.Logger
}

// New creates a dispatcher. projectID may be empty, in which case
// every word is posted directly to pushURL.
func New(projectID, locationID, queueID, pushURL string) (*Dispatcher, error) {
	d := &Dispatcher{
		pushURL: pushURL,
		httpc:   &http.Client{Timeout: 5 * time.Second},
		logger:  log.New(log.Writer(), "[OUTBOUND] ", log.LstdFlags),
	}

	if projectID == "" {
		d.logger.Printf("⚠️ Cloud Tasks not configured, using direct HTTP delivery to %s", pushURL)
		return d, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudtasks.NewClient: %w", err)
	}
	d.client = client
	d.queuePath = fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, locationID, queueID)
	d.logger.Printf("✅ Connected to Cloud Tasks queue: %s", d.queuePath)
	return d, nil
}

// Dispatch enqueues one resolved word. The enqueue happens off the
// caller's goroutine; failures fall back to a direct POST.
func (d *Dispatcher) Dispatch(resolved events.ResolvedWord) {
	payload, err := events.Marshal(resolved)
	if err != nil {
		d.logger.Printf("❌ marshal resolved word for %s: %v", resolved.SessionID, err)
		return
	}

	if d.client == nil {
		go d.postDirect(resolved.SessionID, payload)
		return
	}

	req := &taskspb.CreateTaskRequest{
		Parent: d.queuePath,
		Task: &taskspb.Task{
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        d.pushURL,
					Headers:    map[string]string{"Content-Type": "application/json"},
					Body:       payload,
				},
			},
		},
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		task, err := d.client.CreateTask(ctx, req)
		if err != nil {
			d.logger.Printf("❌ Cloud Task enqueue failed for session %s: %v", resolved.SessionID, err)
			d.postDirect(resolved.SessionID, payload)
			return
		}
		d.logger.Printf("📤 Enqueued resolved word for session %s (task=%s)", resolved.SessionID, task.GetName())
	}()
}

func (d *Dispatcher) postDirect(sessionID string, payload []byte) {
	resp, err := d.httpc.Post(d.pushURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		d.logger.Printf("❌ direct delivery failed for session %s: %v", sessionID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.logger.Printf("⚠️ push worker returned %d for session %s", resp.StatusCode, sessionID)
	}
}

// Shutdown closes the Cloud Tasks client.
func (d *Dispatcher) Shutdown() {
	if d.client != nil {
		if err := d.client.Close(); err != nil {
			d.logger.Printf("⚠️ Cloud Tasks client close error: %v", err)
		}
	}
	d.logger.Printf("🔌 outbound dispatcher closed")
}
