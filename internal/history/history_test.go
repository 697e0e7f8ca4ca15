package history

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samsaffron/aleph/internal/llm"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.json")
	msgs := []llm.Message{
		llm.UserText("hi"),
		llm.ModelText("**hello**\n- a\n- b"),
	}

	if err := Save(path, msgs); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(msgs, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "h.json")
	if err := Save(path, []llm.Message{llm.UserText("hi")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n  {\n    \"role\": \"user\",\n    \"content\": \"hi\"\n  }\n]\n"
	if string(data) != want {
		t.Fatalf("file=%q, want %q", data, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	if err := Save(path, nil); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d messages, want 0", len(got))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    ErrorKind
	}{
		{name: "broken json", content: `[{"role": "user"`, kind: ErrInvalidJSON},
		{name: "object not array", content: `{"role": "user", "content": "x"}`, kind: ErrInvalidFormat},
		{name: "null", content: `null`, kind: ErrInvalidFormat},
		{name: "bad role", content: `[{"role": "assistant", "content": "x"}]`, kind: ErrInvalidFormat},
		{name: "missing role", content: `[{"content": "x"}]`, kind: ErrInvalidFormat},
		{name: "missing content", content: `[{"role": "user"}]`, kind: ErrInvalidFormat},
		{name: "numeric content", content: `[{"role": "user", "content": 3}]`, kind: ErrInvalidFormat},
		{name: "non-object entry", content: `["hi"]`, kind: ErrInvalidFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "h.json")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			var histErr *Error
			if !errors.As(err, &histErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if histErr.Kind != tc.kind {
				t.Fatalf("kind=%d, want %d (%v)", histErr.Kind, tc.kind, err)
			}
		})
	}
}

func TestLoadMessages(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	if err == nil || err.Error() != "File "+filepath.Join(dir, "missing.json")+" not found." {
		t.Fatalf("missing file error=%v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0644)
	_, err = Load(bad)
	if err == nil || !strings.HasPrefix(err.Error(), "Invalid JSON format in ") {
		t.Fatalf("invalid json error=%v", err)
	}
}

func TestDecodeLegacyParts(t *testing.T) {
	data := []byte(`[
		{"role": "user", "parts": "plain"},
		{"role": "model", "parts": ["a", "b"]},
		{"role": "user", "parts": [{"text": "x"}, {"text": "y"}]}
	]`)

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []llm.Message{
		llm.UserText("plain"),
		llm.ModelText("ab"),
		llm.UserText("xy"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
