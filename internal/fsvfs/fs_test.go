package fsvfs

import "testing"

func TestNormaliseWriteReadRoundTrip(t *testing.T) {
	v := New()
	v.WriteFile("/a/b", "x")

	if got := v.ReadFile("a/b"); got != "x" {
		t.Fatalf("ReadFile(a/b) = %q, want %q", got, "x")
	}
	if !v.Exists("a/b") {
		t.Fatal("Exists(a/b) should be true")
	}
	if !v.Exists("/a/b") {
		t.Fatal("Exists(/a/b) should be true")
	}
}

func TestReadMissingFileReturnsEmptyString(t *testing.T) {
	v := New()
	if got := v.ReadFile("nope"); got != "" {
		t.Fatalf("ReadFile(nope) = %q, want empty string", got)
	}
	if v.Exists("nope") {
		t.Fatal("Exists(nope) should be false")
	}
}

func TestIsDirectory(t *testing.T) {
	v := New()
	v.WriteFile("/app/src/index.ts", "export const x = 1")

	if !v.IsDirectory("app/src") {
		t.Fatal("app/src should be a directory")
	}
	if v.IsDirectory("app/src/index.ts") {
		t.Fatal("a file path should not be a directory")
	}
}

func TestAppendFilePreservesEntryFlag(t *testing.T) {
	v := New()
	v.SetFiles(map[string]FileRecord{
		"app/index.ts": {Contents: "export {}", IsEntry: true},
	})
	v.AppendFile("app/index.ts", "\nexport const y = 2")

	rec := v.RawFiles()["app/index.ts"]
	if !rec.IsEntry {
		t.Fatal("IsEntry flag should survive AppendFile")
	}
	if rec.Contents != "export {}\nexport const y = 2" {
		t.Fatalf("unexpected merged contents: %q", rec.Contents)
	}
}

func TestRmdirRemovesAllMatchingPrefixes(t *testing.T) {
	v := New()
	v.WriteFile("/node_modules/x/package.json", "{}")
	v.WriteFile("/node_modules/x/index.js", "module.exports = {}")
	v.WriteFile("/node_modules/y/package.json", "{}")

	v.Rmdir("node_modules/x")

	if v.Exists("node_modules/x/package.json") || v.Exists("node_modules/x/index.js") {
		t.Fatal("rmdir should remove every key under the prefix")
	}
	if !v.Exists("node_modules/y/package.json") {
		t.Fatal("rmdir should not touch unrelated keys")
	}
}

type recordingProxy struct {
	writes []string
}

func (p *recordingProxy) WriteFile(path, contents string) error {
	p.writes = append(p.writes, path)
	return nil
}
func (p *recordingProxy) AppendFile(path, contents string) error { return nil }
func (p *recordingProxy) DeleteFile(path string) error           { return nil }
func (p *recordingProxy) Rmdir(path string) error                { return nil }
func (p *recordingProxy) SetFiles(files map[string]FileRecord) error {
	for path := range files {
		p.writes = append(p.writes, path)
	}
	return nil
}

func TestWritesMirrorToBoundProxy(t *testing.T) {
	v := New()
	proxy := &recordingProxy{}
	v.BindProxy(proxy)

	v.WriteFile("/app/x.js", "1")

	if len(proxy.writes) != 1 || proxy.writes[0] != "app/x.js" {
		t.Fatalf("expected proxy mirror of app/x.js, got %v", proxy.writes)
	}
}

func TestClassifyJSDetectsESM(t *testing.T) {
	v := New()
	v.WriteFile("/app/esm.js", "export const a = 1;")
	v.WriteFile("/app/cjs.js", "module.exports = { a: 1 };")

	if !v.RawFiles()["app/esm.js"].IsJSEntry {
		t.Fatal("esm.js should classify as an ESM entry")
	}
	if v.RawFiles()["app/cjs.js"].IsJSEntry {
		t.Fatal("cjs.js should not classify as an ESM entry")
	}
}
