package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warpcomdev/inferpipe/internal/pipelog"
)

// Alert mirrors the teacher's internal/driver/backend.Alert resource
// shape, generalized from a per-camera alert to a per-pipeline one.
type Alert struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Name       string `json:"name,omitempty"`
	Severity   string `json:"severity,omitempty"`
	Message    string `json:"message,omitempty"`
	ResolvedAt string `json:"resolved_at,omitempty"`
}

type alertListReply struct {
	Data []json.RawMessage `json:"data"`
}

// Alerter raises and clears a named alert against the cloud API's
// /api/alert resource, the same POST-then-GET-then-PUT idempotent
// upsert the teacher's Server.SendAlert/ClearAlert perform (spec's
// sibling "platform" tooling, adapted in rather than reimplemented in
// full per SPEC_FULL.md §4). Used by the Supervisor to surface a
// "pipeline stalled" condition without a separate CRUD client.
type Alerter struct {
	backend *Backend
	log     pipelog.Logger
}

// NewAlerter builds an Alerter sharing the cloud Backend's HTTP client
// and auth token cache.
func NewAlerter(b *Backend, log pipelog.Logger) *Alerter {
	if log == nil {
		log = pipelog.Nop()
	}
	return &Alerter{backend: b, log: log}
}

// Raise upserts an unresolved alert with the given id, name, severity
// and message. Safe to call repeatedly; the backend treats id as the
// dedup key.
func (a *Alerter) Raise(ctx context.Context, id, name, severity, message string) {
	alert := Alert{
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Name:      name,
		Severity:  severity,
		Message:   message,
	}
	if err := a.post(ctx, alert); err != nil {
		a.log.Warn("failed to raise alert", pipelog.String("id", id), pipelog.Error(err))
	}
}

// Clear resolves the alert with the given id if one is currently open,
// mirroring the teacher's get-then-put pattern so a Clear on an
// already-resolved or nonexistent alert is a silent no-op.
func (a *Alerter) Clear(ctx context.Context, id string) {
	exists, err := a.exists(ctx, id)
	if err != nil {
		a.log.Warn("failed to check alert status", pipelog.String("id", id), pipelog.Error(err))
		return
	}
	if !exists {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := a.put(ctx, Alert{ID: id, Timestamp: now, ResolvedAt: now}); err != nil {
		a.log.Warn("failed to clear alert", pipelog.String("id", id), pipelog.Error(err))
	}
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.backend.cfg.APIURL+"/api/alert", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.backend.auth.Do(ctx, req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloud: alert post http %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) put(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/alert/%s", a.backend.cfg.APIURL, alert.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.backend.auth.Do(ctx, req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloud: alert put http %d", resp.StatusCode)
	}
	return nil
}

func (a *Alerter) exists(ctx context.Context, id string) (bool, error) {
	url := fmt.Sprintf("%s/api/alert?q:id:eq=%s", a.backend.cfg.APIURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := a.backend.auth.Do(ctx, req)
	if err != nil {
		return false, err
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("cloud: alert get http %d", resp.StatusCode)
	}
	var reply alertListReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return false, err
	}
	return len(reply.Data) > 0, nil
}
