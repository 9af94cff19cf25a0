package cdn

import "testing"

func TestFingerprintCanonicality(t *testing.T) {
	a := Fingerprint(map[string]string{"b": "2", "a": "1"})
	b := Fingerprint(map[string]string{"a": "1", "b": "2"})
	if a != b {
		t.Fatalf("fingerprint should not depend on map insertion order: %q != %q", a, b)
	}

	want := Fingerprint(map[string]string{"a": "1", "b": "2"})
	if a != want {
		t.Fatalf("got %q", a)
	}
}

func TestStripMajorSuffixScopedPackage(t *testing.T) {
	if got := StripMajorSuffix("@babel/core@18"); got != "@babel/core" {
		t.Fatalf("got %q, want @babel/core", got)
	}
	if got := StripMajorSuffix("react@18"); got != "react" {
		t.Fatalf("got %q, want react", got)
	}
}

func TestDistTagsRoundTrip(t *testing.T) {
	in := map[string]string{"react@18": "18.2.0", "@babel/core@7": "7.23.0"}
	data := EncodeDistTags(in)
	out, err := DecodeDistTags(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d entries, want %d", len(out), len(in))
	}
	for k, v := range in {
		if out[k] != v {
			t.Fatalf("entry %q: got %q, want %q", k, out[k], v)
		}
	}
}

func TestModuleFilesRoundTrip(t *testing.T) {
	in := map[string][]byte{
		"package.json": []byte(`{"name":"x","version":"1","main":"i.js"}`),
		"i.js":         []byte("X"),
	}
	data := EncodeModuleFiles(in)
	out, err := DecodeModuleFiles(data)
	if err != nil {
		t.Fatal(err)
	}
	if string(out["i.js"]) != "X" {
		t.Fatalf("got %q", out["i.js"])
	}
}
