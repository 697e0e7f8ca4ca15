package analysis

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samsaffron/aleph/internal/llm"
)

type fakeUploader struct {
	failOn    string
	streamErr error

	uploaded []string
	deleted  []string
	prompt   string
	files    []llm.File
}

func (f *fakeUploader) UploadFile(_ context.Context, path string) (llm.File, error) {
	if f.failOn != "" && filepath.Base(path) == f.failOn {
		return llm.File{}, &llm.ServiceError{Op: "upload", Attempts: 1, Err: errors.New("413 too large")}
	}
	f.uploaded = append(f.uploaded, path)
	return llm.File{Name: "files/" + filepath.Base(path), DisplayName: filepath.Base(path), Path: path}, nil
}

func (f *fakeUploader) DeleteFile(_ context.Context, file llm.File) bool {
	f.deleted = append(f.deleted, file.Name)
	return true
}

func (f *fakeUploader) GenerateWithFiles(_ context.Context, _ string, prompt string, files []llm.File) *llm.TextStream {
	f.prompt = prompt
	f.files = files
	streamErr := f.streamErr
	var seq iter.Seq2[string, error] = func(yield func(string, error) bool) {
		if !yield("analysis", nil) {
			return
		}
		if streamErr != nil {
			yield("", streamErr)
		}
	}
	return llm.NewTextStream(seq)
}

func collect(stream *llm.TextStream) error {
	_, err := llm.Collect(stream)
	return err
}

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestOrchestrator(t *testing.T, up Uploader, ignore ...string) (*Orchestrator, *[]string) {
	t.Helper()
	var reports []string
	o, err := New(up, Options{Ignore: ignore, Report: func(s string) { reports = append(reports, s) }}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o, &reports
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"main.py",
		"README.MD",
		"image.png",
		".env",
		"prod.env",
		"src/app.go",
		"src/app.min.js",
		".git/config.json",
		"node_modules/pkg/index.js",
		"src/build/out.txt",
	)
	o, _ := newTestOrchestrator(t, &fakeUploader{}, "**/*.min.js")

	files, err := o.CollectFiles(root)
	if err != nil {
		t.Fatalf("CollectFiles: %v", err)
	}
	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(root, f)
		rel = append(rel, filepath.ToSlash(r))
	}
	want := []string{"README.MD", "main.py", "prod.env", "src/app.go"}
	if diff := cmp.Diff(want, rel); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"a.py":      ".py",
		"A.PY":      ".py",
		".env":      "",
		"prod.env":  ".env",
		"Makefile":  "",
		"x.tar.gz":  ".gz",
		".eslintrc": "",
	}
	for name, want := range tests {
		if got := extension(name); got != want {
			t.Fatalf("extension(%q)=%q, want %q", name, got, want)
		}
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	if _, err := New(&fakeUploader{}, Options{Ignore: []string{"[unclosed"}}, nil); err == nil {
		t.Fatal("expected invalid pattern error")
	}
}

func TestAnalyzeDirectoryNoFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "photo.png", "node_modules/a.js")
	up := &fakeUploader{}
	o, _ := newTestOrchestrator(t, up)

	err := o.AnalyzeDirectory(context.Background(), "m1", root, "review", collect)
	var aErr *Error
	if !errors.As(err, &aErr) {
		t.Fatalf("err=%v, want *Error", err)
	}
	if len(up.uploaded) != 0 {
		t.Fatalf("uploads=%v, want none", up.uploaded)
	}
}

func TestAnalyzeDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	writeFiles(t, root, "a.py", "b.md")
	up := &fakeUploader{}
	o, reports := newTestOrchestrator(t, up)

	var got string
	err := o.AnalyzeDirectory(context.Background(), "m1", root, "find bugs", func(s *llm.TextStream) error {
		text, err := llm.Collect(s)
		got = text
		return err
	})
	if err != nil {
		t.Fatalf("AnalyzeDirectory: %v", err)
	}
	if got != "analysis" {
		t.Fatalf("streamed=%q", got)
	}
	wantPrompt := "Analyze the following 2 files from the project 'proj'. The user wants you to perform the following task: find bugs\n\nFile contents are provided below."
	if up.prompt != wantPrompt {
		t.Fatalf("prompt=%q, want %q", up.prompt, wantPrompt)
	}
	if diff := cmp.Diff([]string{"files/a.py", "files/b.md"}, up.deleted); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}
	wantReports := []string{
		"Uploading: a.py...",
		"Uploading: b.md...",
		"Successfully uploaded 2 files. Preparing prompt.",
		"Clean up complete: Deleted 2 files from service.",
	}
	if diff := cmp.Diff(wantReports, *reports); diff != "" {
		t.Fatalf("reports mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeDirectoryPartialUploadCleansUp(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.py", "b.py", "c.py")
	up := &fakeUploader{failOn: "b.py"}
	o, _ := newTestOrchestrator(t, up)

	err := o.AnalyzeDirectory(context.Background(), "m1", root, "x", collect)
	var aErr *Error
	if !errors.As(err, &aErr) || !strings.Contains(aErr.Msg, "LLM service error") {
		t.Fatalf("err=%v, want wrapped service error", err)
	}
	if diff := cmp.Diff([]string{"files/a.py"}, up.deleted); diff != "" {
		t.Fatalf("deleted mismatch (-want +got):\n%s", diff)
	}
	if up.prompt != "" {
		t.Fatal("no generation call expected after a failed upload")
	}
}

func TestAnalyzeDirectoryFirstUploadFailsStillReportsCleanup(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.py", "b.py")
	up := &fakeUploader{failOn: "a.py"}
	o, reports := newTestOrchestrator(t, up)

	if err := o.AnalyzeDirectory(context.Background(), "m1", root, "x", collect); err == nil {
		t.Fatal("expected error")
	}
	if len(up.deleted) != 0 {
		t.Fatalf("deleted=%v, want none", up.deleted)
	}
	wantReports := []string{
		"Uploading: a.py...",
		"Clean up complete: Deleted 0 files from service.",
	}
	if diff := cmp.Diff(wantReports, *reports); diff != "" {
		t.Fatalf("reports mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "notes.txt")
	path := filepath.Join(root, "notes.txt")

	t.Run("success", func(t *testing.T) {
		up := &fakeUploader{}
		o, reports := newTestOrchestrator(t, up)
		if err := o.AnalyzeFile(context.Background(), "m1", path, "summarize", collect); err != nil {
			t.Fatalf("AnalyzeFile: %v", err)
		}
		if up.prompt != "summarize" || len(up.files) != 1 {
			t.Fatalf("prompt=%q files=%d", up.prompt, len(up.files))
		}
		if len(up.deleted) != 1 {
			t.Fatalf("deleted=%v, want 1", up.deleted)
		}
		wantReports := []string{
			"Uploading file: notes.txt...",
			"File uploaded successfully. Sent for analysis.",
		}
		if diff := cmp.Diff(wantReports, *reports); diff != "" {
			t.Fatalf("reports mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stream failure still cleans up", func(t *testing.T) {
		up := &fakeUploader{streamErr: &llm.ServiceError{Op: "file", Attempts: 3, Transient: true, Err: errors.New("503")}}
		o, _ := newTestOrchestrator(t, up)
		err := o.AnalyzeFile(context.Background(), "m1", path, "summarize", collect)
		var aErr *Error
		if !errors.As(err, &aErr) {
			t.Fatalf("err=%v, want *Error", err)
		}
		if len(up.deleted) != 1 {
			t.Fatalf("deleted=%v, want 1", up.deleted)
		}
	})

	t.Run("interrupt passes through and cleans up", func(t *testing.T) {
		up := &fakeUploader{streamErr: context.Canceled}
		o, _ := newTestOrchestrator(t, up)
		err := o.AnalyzeFile(context.Background(), "m1", path, "summarize", collect)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v, want context.Canceled", err)
		}
		var aErr *Error
		if errors.As(err, &aErr) {
			t.Fatal("interrupts must not be wrapped")
		}
		if len(up.deleted) != 1 {
			t.Fatalf("deleted=%v, want 1", up.deleted)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		up := &fakeUploader{}
		o, _ := newTestOrchestrator(t, up)
		err := o.AnalyzeFile(context.Background(), "m1", filepath.Join(root, "nope.txt"), "x", collect)
		var aErr *Error
		if !errors.As(err, &aErr) {
			t.Fatalf("err=%v, want *Error", err)
		}
		if len(up.uploaded) != 0 {
			t.Fatal("no upload expected")
		}
	})

	t.Run("directory is not a file", func(t *testing.T) {
		up := &fakeUploader{}
		o, _ := newTestOrchestrator(t, up)
		if err := o.AnalyzeFile(context.Background(), "m1", root, "x", collect); err == nil {
			t.Fatal("expected error")
		}
	})
}
