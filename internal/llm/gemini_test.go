package llm

import (
	"errors"
	"testing"

	"google.golang.org/genai"
)

func TestBuildGeminiHistory(t *testing.T) {
	contents := buildGeminiHistory([]Message{
		UserText("hi"),
		ModelText("hello"),
	})

	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Fatalf("roles=%q,%q, want user,model", contents[0].Role, contents[1].Role)
	}
	if got := contents[1].Parts[0].Text; got != "hello" {
		t.Fatalf("text=%q, want %q", got, "hello")
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "main.py", want: "text/x-python"},
		{path: "README.MD", want: "text/markdown"},
		{path: "data.csv", want: "text/csv"},
		{path: "Makefile", want: "text/plain"},
		{path: "archive.tar.gz", want: "text/plain"},
	}
	for _, tc := range tests {
		if got := mimeTypeFor(tc.path); got != tc.want {
			t.Fatalf("mimeTypeFor(%q)=%q, want %q", tc.path, got, tc.want)
		}
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestTextFragments(t *testing.T) {
	boom := errors.New("boom")
	responses := func(yield func(*genai.GenerateContentResponse, error) bool) {
		if !yield(textResponse("a"), nil) {
			return
		}
		if !yield(textResponse(""), nil) {
			return
		}
		if !yield(textResponse("b"), nil) {
			return
		}
		yield(nil, boom)
	}

	var got []string
	var gotErr error
	for text, err := range textFragments(responses) {
		if err != nil {
			gotErr = err
			break
		}
		got = append(got, text)
	}

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("fragments=%q, want [a b]", got)
	}
	if !errors.Is(gotErr, boom) {
		t.Fatalf("err=%v, want wrapped boom", gotErr)
	}
}
