package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/types"
)

const (
	// DefaultAPIVersion is the directory API version spoken by this client
	DefaultAPIVersion = "v1"

	requestTimeout = 15 * time.Second
)

// Client is the narrow HTTP client to the remote node directory: log in,
// register this node, and fetch peer routing-information pages. The rest
// of the system treats the directory as an opaque collaborator.
type Client struct {
	baseURL      string
	username     string
	password     string
	sessionToken string
	nodeID       string
	http         *http.Client
}

// NewClient builds a directory client for the configured endpoint.
func NewClient(registryURL, username, password string) *Client {
	base := strings.TrimRight(registryURL, "/") + "/api/" + DefaultAPIVersion + "/"
	return &Client{
		baseURL:  base,
		username: username,
		password: password,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

// SessionToken returns the token obtained by Login, or "".
func (c *Client) SessionToken() string {
	return c.sessionToken
}

// NodeID returns the directory-assigned node id after RegisterNode.
func (c *Client) NodeID() string {
	return c.nodeID
}

// Login authenticates against the directory and stores the session token.
func (c *Client) Login(ctx context.Context) error {
	var out struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	err := c.post(ctx, "login", map[string]interface{}{
		"email":    c.username,
		"password": c.password,
	}, &out, http.StatusOK)
	if err != nil {
		return fmt.Errorf("registry login: %w", err)
	}
	c.sessionToken = out.Token
	return nil
}

// RegisterNode announces this node under the given callsign.
func (c *Client) RegisterNode(ctx context.Context, callsign, nodeType, nodeIP string) error {
	body := map[string]interface{}{
		"name": callsign,
		"type": nodeType,
	}
	if nodeIP != "" {
		body["ip"] = nodeIP
	}

	var out struct {
		NodeID string `json:"node_id"`
	}
	if err := c.post(ctx, "register_node", body, &out, http.StatusCreated); err != nil {
		return fmt.Errorf("registry register_node: %w", err)
	}
	c.nodeID = out.NodeID
	lg := log.WithNodeID(out.NodeID)
	lg.Info().Str("callsign", callsign).Msg("node registered with directory")
	return nil
}

// FetchNRIs pulls a page of node records from the directory.
func (c *Client) FetchNRIs(ctx context.Context, limit int) ([]*types.NRI, error) {
	var out struct {
		Records []*types.NRI `json:"records"`
	}
	if err := c.get(ctx, fmt.Sprintf("nri?limit=%d", limit), &out); err != nil {
		return nil, fmt.Errorf("registry fetch nri: %w", err)
	}
	return out.Records, nil
}

// FetchRRIs pulls a page of relay records from the directory.
func (c *Client) FetchRRIs(ctx context.Context, limit int) ([]*types.RRI, error) {
	var out struct {
		Records []*types.RRI `json:"records"`
	}
	if err := c.get(ctx, fmt.Sprintf("rri?limit=%d", limit), &out); err != nil {
		return nil, fmt.Errorf("registry fetch rri: %w", err)
	}
	return out.Records, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}, wantStatus int) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
