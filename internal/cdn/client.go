package cdn

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// httpClient mirrors the teacher's query.go dial/timeout configuration:
// a 15-second dial timeout, plus an absolute 60-second deadline on all
// I/O over each connection, set once when it is dialled.
var httpClient = &http.Client{
	Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := (&net.Dialer{Timeout: 15 * time.Second}).DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			conn.SetDeadline(time.Now().Add(60 * time.Second))
			return conn, nil
		},
		MaxIdleConnsPerHost:   6,
		ResponseHeaderTimeout: 60 * time.Second,
	},
}

// Client talks the registry wire protocol to a single CDN base URL.
type Client struct {
	RegistryBaseURL string
}

// NewClient returns a Client bound to the given registry base URL (spec.md
// §6's {registryBaseUrl}).
func NewClient(registryBaseURL string) *Client {
	return &Client{RegistryBaseURL: registryBaseURL}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RegistryBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdn: GET %s returned status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetRaw issues a GET against path and returns the raw response bytes,
// exposed so callers can memoise the undecoded payload (spec.md §4.3 step
// 3: "The response path is cached in the local tier keyed by the request
// path").
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	return c.get(ctx, path)
}

// ResolveDeps issues GET {base}/v2/deps/{fingerprint} and decodes the
// name@major -> version response.
func (c *Client) ResolveDeps(ctx context.Context, fingerprint string) (map[string]string, error) {
	data, err := c.get(ctx, DepsRequestPath(fingerprint))
	if err != nil {
		return nil, err
	}
	return DecodeDistTags(data)
}

// FetchModuleRaw issues GET {base}/v2/mod/{base64(name@version)} and
// returns the raw (still wire-encoded, see DecodeModuleFiles) response bytes.
func (c *Client) FetchModuleRaw(ctx context.Context, name, version string) ([]byte, error) {
	return c.get(ctx, ModuleRequestPath(name, version))
}

// FetchModule issues GET {base}/v2/mod/{base64(name@version)} and decodes
// the relativePath -> bytes response.
func (c *Client) FetchModule(ctx context.Context, name, version string) (map[string][]byte, error) {
	data, err := c.FetchModuleRaw(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return DecodeModuleFiles(data)
}
