package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.Remote = (*Remote)(nil)

// Remote delivers operations to a backend over HTTPS. It is the default
// remote for deployments without direct database reach.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemote creates an HTTP remote. token may be empty for backends that
// authenticate by network position.
func NewRemote(baseURL, token string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Remote{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit posts one operation. The backend confirms a commit with 2xx; 409
// means local/remote divergence; anything else is treated as transient and
// absorbed by the worker's retry cycle.
func (r *Remote) Submit(ctx context.Context, op fieldsync.Operation) error {
	body, err := json.Marshal(op)
	if err != nil {
		return fieldsync.Internal("encoding operation", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/operations", bytes.NewReader(body))
	if err != nil {
		return fieldsync.Internal("building operation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fieldsync.Unavailable("submitting operation", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return fieldsync.Conflict("remote rejected operation for inspection %s", op.InspectionID)
	default:
		return fieldsync.Unavailable(
			fmt.Sprintf("remote returned status %d", resp.StatusCode), nil)
	}
}
