// Package storage implements the persistent tier of the Package Cache: a
// small key/value store registry in the spirit of the teacher's own
// storage.DB/RegisterDB capability registration, adapted from a pluggable
// document database to a pluggable byte-value store keyed by request path.
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ije/gox/utils"
)

// ErrNotFound is returned by a Store when a key has no record.
var ErrNotFound = errors.New("storage: record not found")

// Record is a single persisted cache entry: the request path it was fetched
// for, and the opaque bytes returned by that fetch.
type Record struct {
	Request  string
	Data     []byte
	LastUsed int64
}

// Store is a named key/value persistence backend. Implementations back the
// `cache`, `lockfile` and `sandpack-cdn` object stores spec.md's persistent
// tier describes.
type Store interface {
	Get(bucket, key string) (Record, error)
	Put(bucket string, rec Record) error
	Delete(bucket, key string) error
	Close() error
}

// Opener constructs a Store from a backend-specific config string, mirroring
// the teacher's DB.Open(config string) contract.
type Opener interface {
	Open(config string) (Store, error)
}

var backends sync.Map

// RegisterBackend registers a named Store opener. Re-registering the same
// name is a programmer error.
func RegisterBackend(name string, o Opener) {
	if _, loaded := backends.LoadOrStore(name, o); loaded {
		panic(fmt.Sprintf("storage: backend %q already registered", name))
	}
}

// Open resolves a "name:config" URL into a Store via its registered opener,
// matching the teacher's "postdb:path" / "s3:bucket" URL convention.
func Open(url string) (Store, error) {
	name, config := utils.SplitByFirstByte(url, ':')
	v, ok := backends.Load(name)
	if !ok {
		return nil, fmt.Errorf("storage: unregistered backend %q", name)
	}
	return v.(Opener).Open(config)
}
