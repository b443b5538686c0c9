// Package cloud implements the cloud HTTP inference backend of spec
// §4.6, adapted from the teacher's internal/driver/backend package: the
// same authenticated-client-with-retry-on-401 shape, generalized from
// "post camera media" to "post an image, poll a prediction task".
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/warpcomdev/inferpipe/internal/pipelog"
)

var (
	errEmptyAuthResponse = errors.New("cloud: empty auth response")
	errEmptyToken        = errors.New("cloud: empty token in auth response")
)

// Client is the minimal http.Client surface this package depends on,
// the same seam the teacher's backend.Client interface uses to allow
// test doubles.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

type authReply struct {
	Token string `json:"token"`
}

// auth authenticates against DEEPOMATIC_APP_ID / DEEPOMATIC_API_KEY
// (spec's credential env vars, confirmed in original_source's
// workflow_abstraction.py) and caches the bearer token, re-fetching it
// once on a 401/403 (teacher's auth.Do retry-once pattern).
type auth struct {
	client   Client
	apiURL   string
	appID    string
	apiKey   string
	log      pipelog.Logger
	token    string
	hasToken bool
}

func newAuth(client Client, apiURL, appID, apiKey string, log pipelog.Logger) *auth {
	return &auth{client: client, apiURL: apiURL, appID: appID, apiKey: apiKey, log: log}
}

// eternalBackoff is the teacher's unbounded-retry policy for
// authentication: the Sender pool's constant 5-retry policy governs
// per-frame submission, but logging in blocks indefinitely until the
// cloud API is reachable (teacher's internal/driver/backend.eternalBackoff).
func eternalBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0
	return bo
}

func (a *auth) login(ctx context.Context) (string, error) {
	var token string
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+"/v0-beta1/oauth/token", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(a.appID, a.apiKey)
		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer drain(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return errEmptyAuthResponse
		}
		var reply authReply
		if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
			return err
		}
		if reply.Token == "" {
			return errEmptyToken
		}
		token = reply.Token
		return nil
	}, backoff.WithContext(eternalBackoff(), ctx))
	if err != nil {
		return "", err
	}
	a.token = token
	a.hasToken = true
	return token, nil
}

// Do performs req with a bearer token, fetching one first if this auth
// has none cached, and retrying once with a fresh token on 401/403.
func (a *auth) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !a.hasToken {
		if _, err := a.login(ctx); err != nil {
			return nil, err
		}
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		drain(resp.Body)
		if _, err := a.login(ctx); err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+a.token)
		return a.client.Do(req)
	}
	return resp, nil
}

func drain(body io.ReadCloser) {
	if body != nil {
		io.Copy(io.Discard, body)
		body.Close()
	}
}
