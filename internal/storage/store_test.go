package storage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestBoltStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open("bolt:" + filepath.Join(dir, "deps.boltdb"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.Put("sandpack-cdn", Record{Request: "/v2/mod/eHl6", Data: []byte("payload"), LastUsed: 42})
	if err != nil {
		t.Fatal(err)
	}

	rec, err := store.Get("sandpack-cdn", "/v2/mod/eHl6")
	if err != nil {
		t.Fatal(err)
	}
	if string(rec.Data) != "payload" {
		t.Fatalf("got %q, want %q", rec.Data, "payload")
	}
}

func TestBoltStoreMissReturnsErrNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := Open("bolt:" + filepath.Join(dir, "deps.boltdb"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = store.Get("cache", "missing")
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestOpenUnregisteredBackend(t *testing.T) {
	_, err := Open("does-not-exist:/tmp/x")
	if err == nil {
		t.Fatal("expected an error for an unregistered backend")
	}
}

func TestRemoteFSMirrorsWriteFile(t *testing.T) {
	var gotPath, gotContents string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Path     string `json:"path"`
			Contents string `json:"contents"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotPath, gotContents = body.Path, body.Contents
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	proxy := NewRemoteFS(srv.URL)
	if err := proxy.WriteFile("app/x.js", "1"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "app/x.js" || gotContents != "1" {
		t.Fatalf("got path=%q contents=%q", gotPath, gotContents)
	}
}
