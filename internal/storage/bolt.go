package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"
	bolt "go.etcd.io/bbolt"
)

// compress/decompress shrink persisted blobs on disk. The browser original
// relies on IndexedDB's own storage; a flat bbolt file benefits from
// compressing the opaque CDN payloads it holds, so every record is
// gzip-compressed transparently to callers of Store.
func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

type boltOpener struct{}

func (o *boltOpener) Open(path string) (Store, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, err
	}
	return &boltStore{db: db}, nil
}

type boltStore struct {
	db *bolt.DB
}

type boltRecord struct {
	Request  string `json:"request"`
	Data     []byte `json:"data"`
	LastUsed int64  `json:"lastUsed"`
}

func (s *boltStore) Get(bucket, key string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return ErrNotFound
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		var br boltRecord
		if err := json.Unmarshal(raw, &br); err != nil {
			return err
		}
		plain, err := decompress(br.Data)
		if err != nil {
			return err
		}
		rec = Record{Request: br.Request, Data: plain, LastUsed: br.LastUsed}
		return nil
	})
	return rec, err
}

func (s *boltStore) Put(bucket string, rec Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		idx, err := tx.CreateBucketIfNotExists([]byte(bucket + "_by_last_used"))
		if err != nil {
			return err
		}
		compressed, err := compress(rec.Data)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(boltRecord{Request: rec.Request, Data: compressed, LastUsed: rec.LastUsed})
		if err != nil {
			return err
		}
		if err := b.Put([]byte(rec.Request), raw); err != nil {
			return err
		}
		// secondary index on lastUsed: bbolt has no native secondary
		// indexes, so the "lastUsed" index the cache schema names is
		// maintained as a parallel bucket keyed by a sortable timestamp.
		var tsKey [8]byte
		binary.BigEndian.PutUint64(tsKey[:], uint64(rec.LastUsed))
		return idx.Put(append(tsKey[:], []byte(rec.Request)...), []byte(rec.Request))
	})
}

func (s *boltStore) Delete(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

func init() {
	RegisterBackend("bolt", &boltOpener{})
}
