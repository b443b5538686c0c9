package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/predict"
)

var (
	transferBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inferpipe_cloud_bytes_sent_total",
		Help: "Bytes POSTed to the cloud inference API",
	})
	taskPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inferpipe_cloud_task_polls_total",
		Help: "Task-status poll requests issued while awaiting a cloud prediction",
	})
)

// Config holds the credentials and endpoint for the cloud backend
// (spec §4.6, §6: app id/api key come from DEEPOMATIC_APP_ID /
// DEEPOMATIC_API_KEY, confirmed in original_source).
type Config struct {
	APIURL        string
	AppID         string
	APIKey        string
	RecognitionID string
}

// Backend implements backend.Backend against the cloud HTTP inference
// API: POST the encoded image as multipart form data, receive a task
// id, and poll /inference/{task_id} until it resolves (adapted from
// the teacher's sendResource/getResource pattern, generalized from
// camera-media upload to inference submission).
type Backend struct {
	cfg    Config
	client Client
	auth   *auth
	log    pipelog.Logger
}

// New builds a cloud Backend. client defaults to http.DefaultClient
// when nil, the same seam the teacher's auth.client allows for tests.
func New(cfg Config, client Client, log pipelog.Logger) *Backend {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = pipelog.Nop()
	}
	return &Backend{
		cfg:    cfg,
		client: client,
		auth:   newAuth(client, cfg.APIURL, cfg.AppID, cfg.APIKey, log),
		log:    log,
	}
}

type taskReply struct {
	TaskID string `json:"task_id"`
}

// Infer implements backend.Backend.
func (b *Backend) Infer(ctx context.Context, encoded []byte, frameName string) (backend.PendingResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s.jpg"`, frameName))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(encoded); err != nil {
		return nil, err
	}
	writer.Close()
	transferBytes.Add(float64(len(encoded)))

	url := fmt.Sprintf("%s/v0-beta1/recognition-versions/%s/inference", b.cfg.APIURL, b.cfg.RecognitionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.auth.Do(ctx, req)
	if err != nil {
		return nil, &backend.InferError{FrameName: frameName, Code: "submit_failed", Err: err}
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return nil, &backend.InferError{FrameName: frameName, Code: fmt.Sprintf("http_%d", resp.StatusCode), Err: bodyToError(resp)}
	}
	var reply taskReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, &backend.InferError{FrameName: frameName, Code: "decode_failed", Err: err}
	}
	return &pendingResult{backend: b, taskID: reply.TaskID, frameName: frameName}, nil
}

// Close implements backend.Backend; the cloud backend holds no
// persistent connection beyond the pooled http.Client, so there is
// nothing to tear down.
func (b *Backend) Close() error { return nil }

type taskStatus struct {
	Status string         `json:"status"` // "pending" | "done" | "failed"
	Error  string         `json:"error,omitempty"`
	Record predict.Record `json:"outputs"`
}

// pendingResult implements backend.PendingResult by polling the
// cloud's task-status endpoint with a small inner interval, looped
// until the caller's outer timeout expires (spec §4.6: "await fetches
// ... looped until the caller's outer timeout expires").
type pendingResult struct {
	backend   *Backend
	taskID    string
	frameName string
}

func (p *pendingResult) Await(ctx context.Context, timeout time.Duration) (*predict.Record, error) {
	deadline := time.Now().Add(timeout)
	const pollInterval = 50 * time.Millisecond
	for {
		taskPolls.Inc()
		status, err := p.poll(ctx)
		if err != nil {
			return nil, &backend.InferError{FrameName: p.frameName, Code: "poll_failed", Err: err}
		}
		switch status.Status {
		case "done":
			status.Record.Location = p.frameName
			return &status.Record, nil
		case "failed":
			return nil, &backend.InferError{FrameName: p.frameName, Code: "task_failed", Err: fmt.Errorf("%s", status.Error)}
		}
		if time.Now().After(deadline) {
			return nil, &backend.TimeoutError{FrameName: p.frameName}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (p *pendingResult) poll(ctx context.Context) (taskStatus, error) {
	url := fmt.Sprintf("%s/v0-beta1/tasks/%s", p.backend.cfg.APIURL, p.taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return taskStatus{}, err
	}
	resp, err := p.backend.auth.Do(ctx, req)
	if err != nil {
		return taskStatus{}, err
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return taskStatus{}, bodyToError(resp)
	}
	var status taskStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return taskStatus{}, err
	}
	return status, nil
}

func bodyToError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("cloud: http %d: %s", resp.StatusCode, string(data))
}
