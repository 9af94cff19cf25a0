package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/esbuild-dev/bundlerd/internal/fsvfs"
)

// remoteFSClient talks fs__-prefixed operations to an out-of-thread twin FS
// over plain HTTP, the same capability shape the teacher's s3FSLayer
// exposes (Exists/ReadFile/WriteFile/WriteData) generalised to the virtual
// FS's full mutation set. It implements fsvfs.Proxy.
type remoteFSClient struct {
	baseURL string
	client  *http.Client
}

// NewRemoteFS returns an fsvfs.Proxy that mirrors mutations to another
// process's VFS over HTTP. The teacher dials its own CDN fetches directly
// with net/http rather than a client library, so this proxy follows suit.
func NewRemoteFS(baseURL string) fsvfs.Proxy {
	return &remoteFSClient{
		baseURL: baseURL,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 15 * time.Second}).DialContext,
				ResponseHeaderTimeout: 15 * time.Second,
			},
		},
	}
}

func (r *remoteFSClient) call(op string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := r.client.Post(r.baseURL+"/fs__"+op, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remotefs: %s returned status %d", op, resp.StatusCode)
	}
	return nil
}

func (r *remoteFSClient) WriteFile(path, contents string) error {
	return r.call("writeFile", map[string]string{"path": path, "contents": contents})
}

func (r *remoteFSClient) AppendFile(path, contents string) error {
	return r.call("appendFile", map[string]string{"path": path, "contents": contents})
}

func (r *remoteFSClient) DeleteFile(path string) error {
	return r.call("deleteFile", map[string]string{"path": path})
}

func (r *remoteFSClient) Rmdir(path string) error {
	return r.call("rmdir", map[string]string{"path": path})
}

func (r *remoteFSClient) SetFiles(files map[string]fsvfs.FileRecord) error {
	return r.call("setFiles", map[string]any{"files": files})
}
