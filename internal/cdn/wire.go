// Package cdn implements the registry wire protocol spec.md §6 describes:
// dependency resolution and package-tarball retrieval against a remote
// content-addressed CDN, plus the packages fingerprint used as the cache
// key for a resolution result.
package cdn

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Fingerprint returns the base64 of the ASCII string formed by sorting deps
// lexicographically by name and joining "name@version" entries with ";".
// It is deterministic regardless of the input map's iteration order.
func Fingerprint(deps map[string]string) string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]string, len(names))
	for i, name := range names {
		entries[i] = name + "@" + deps[name]
	}
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(entries, ";")))
}

// StripMajorSuffix turns a "name@major" distTag key into the bare package
// name, preserving scoped names ("@babel/core@18" -> "@babel/core") by
// trimming only the final "@major" segment.
func StripMajorSuffix(key string) string {
	if idx := strings.LastIndex(key, "@"); idx > 0 {
		return key[:idx]
	}
	return key
}

// encodeMap and decodeMap implement the "compact binary
// serialisation" spec.md §6 names but leaves unspecified beyond its shape
// (a mapping of string keys to opaque values). Framing: uint32 entry count,
// then per entry a uint32-length-prefixed key followed by a
// uint32-length-prefixed value.

func encodeMap(m map[string][]byte) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(m)))
	buf.Write(countBuf[:])

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		writeLenPrefixed(&buf, []byte(k))
		writeLenPrefixed(&buf, m[k])
	}
	return buf.Bytes()
}

func decodeMap(data []byte) (map[string][]byte, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("cdn: truncated map header: %w", err)
	}
	out := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		key, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("cdn: truncated map key %d: %w", i, err)
		}
		val, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("cdn: truncated map value %d: %w", i, err)
		}
		out[string(key)] = val
	}
	return out, nil
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeDistTags encodes a name@major -> version map into the compact wire
// format returned by GET /v2/deps/{fingerprint}.
func EncodeDistTags(m map[string]string) []byte {
	bm := make(map[string][]byte, len(m))
	for k, v := range m {
		bm[k] = []byte(v)
	}
	return encodeMap(bm)
}

// DecodeDistTags decodes the response of GET /v2/deps/{fingerprint}.
func DecodeDistTags(data []byte) (map[string]string, error) {
	bm, err := decodeMap(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(bm))
	for k, v := range bm {
		out[k] = string(v)
	}
	return out, nil
}

// EncodeModuleFiles encodes a relativePath -> bytes map into the compact
// wire format returned by GET /v2/mod/{base64(name@version)}.
func EncodeModuleFiles(m map[string][]byte) []byte {
	return encodeMap(m)
}

// DecodeModuleFiles decodes the response of GET /v2/mod/{base64(name@version)}.
func DecodeModuleFiles(data []byte) (map[string][]byte, error) {
	return decodeMap(data)
}

// ModuleRequestPath returns the /v2/mod/{base64(name@version)} path for a
// resolved package, used both as the outgoing request path and as the
// persistent cache key.
func ModuleRequestPath(name, version string) string {
	return "/v2/mod/" + base64.StdEncoding.EncodeToString([]byte(name+"@"+version))
}

// DepsRequestPath returns the /v2/deps/{fingerprint} path for a resolution
// request.
func DepsRequestPath(fingerprint string) string {
	return "/v2/deps/" + fingerprint
}
