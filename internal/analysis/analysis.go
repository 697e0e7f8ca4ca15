// Package analysis uploads local files to the model service, asks for a
// one-shot streamed analysis and always removes the uploads afterwards.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/samsaffron/aleph/internal/llm"
)

// Uploader is the part of the chat client used for file analysis.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (llm.File, error)
	DeleteFile(ctx context.Context, file llm.File) bool
	GenerateWithFiles(ctx context.Context, model, prompt string, files []llm.File) *llm.TextStream
}

// Consumer reads a reply stream to the end, typically by rendering it.
// Uploads stay alive until it returns.
type Consumer func(stream *llm.TextStream) error

// Error is a local validation failure or a wrapped service failure.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures an Orchestrator.
type Options struct {
	Ignore []string     // doublestar globs relative to the analyzed directory
	Report func(string) // progress lines for the user
}

type Orchestrator struct {
	client Uploader
	ignore []string
	report func(string)
	logger *zap.Logger
}

// New validates opts and returns an orchestrator.
func New(client Uploader, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	if err := validatePatterns(opts.Ignore); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	report := opts.Report
	if report == nil {
		report = func(string) {}
	}
	return &Orchestrator{
		client: client,
		ignore: opts.Ignore,
		report: report,
		logger: logger,
	}, nil
}

// AnalyzeFile uploads one file and streams the model's answer to prompt into consume.
func (o *Orchestrator) AnalyzeFile(ctx context.Context, model, path, prompt string, consume Consumer) error {
	info, err := os.Stat(path)
	if err != nil {
		return &Error{Msg: fmt.Sprintf("File not found: %s", path)}
	}
	if !info.Mode().IsRegular() {
		return &Error{Msg: fmt.Sprintf("Not a regular file: %s", path)}
	}
	return o.run(ctx, request{
		kind:    kindFile,
		model:   model,
		paths:   []string{path},
		prompt:  prompt,
		consume: consume,
	})
}

// AnalyzeDirectory uploads every analyzable file under dir and asks for one combined answer.
func (o *Orchestrator) AnalyzeDirectory(ctx context.Context, model, dir, prompt string, consume Consumer) error {
	files, err := o.CollectFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return &Error{Msg: fmt.Sprintf("No supported files found in %s", dir)}
	}

	project := dir
	if abs, err := filepath.Abs(dir); err == nil {
		project = abs
	}
	return o.run(ctx, request{
		kind:    kindDirectory,
		model:   model,
		paths:   files,
		prompt:  DirectoryPrompt(len(files), filepath.Base(project), prompt),
		consume: consume,
	})
}

// DirectoryPrompt builds the instruction sent alongside a directory's files.
func DirectoryPrompt(count int, project, task string) string {
	return fmt.Sprintf("Analyze the following %d files from the project '%s'. "+
		"The user wants you to perform the following task: %s\n\nFile contents are provided below.",
		count, project, task)
}

const (
	kindFile      = "file"
	kindDirectory = "directory"
)

type request struct {
	kind    string
	model   string
	paths   []string
	prompt  string
	consume Consumer
}

func (o *Orchestrator) run(ctx context.Context, req request) (err error) {
	logger := o.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("kind", req.kind),
	)
	logger.Info("analysis started", zap.Int("files", len(req.paths)))

	uploaded := make([]llm.File, 0, len(req.paths))
	defer func() {
		// cleanup must survive an interrupted request
		cleanupCtx := context.WithoutCancel(ctx)
		deleted := 0
		for _, f := range uploaded {
			if o.client.DeleteFile(cleanupCtx, f) {
				deleted++
			}
		}
		if req.kind == kindDirectory {
			o.report(fmt.Sprintf("Clean up complete: Deleted %d files from service.", deleted))
		}
		logger.Info("analysis finished",
			zap.Int("uploaded", len(uploaded)),
			zap.Int("deleted", deleted),
			zap.Error(err),
		)
	}()

	for _, path := range req.paths {
		if req.kind == kindDirectory {
			o.report(fmt.Sprintf("Uploading: %s...", filepath.Base(path)))
		} else {
			o.report(fmt.Sprintf("Uploading file: %s...", filepath.Base(path)))
		}
		f, err := o.client.UploadFile(ctx, path)
		if err != nil {
			return o.wrap(req.kind, err)
		}
		uploaded = append(uploaded, f)
	}
	if req.kind == kindDirectory {
		o.report(fmt.Sprintf("Successfully uploaded %d files. Preparing prompt.", len(uploaded)))
	} else {
		o.report("File uploaded successfully. Sent for analysis.")
	}

	stream := o.client.GenerateWithFiles(ctx, req.model, req.prompt, uploaded)
	defer stream.Close()
	if err := req.consume(stream); err != nil {
		return o.wrap(req.kind, err)
	}
	return nil
}

// wrap turns service failures into analysis errors. Interrupts pass through untouched.
func (o *Orchestrator) wrap(kind string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) {
		return &Error{Msg: fmt.Sprintf("LLM service error during %s analysis", kind), Err: err}
	}
	return &Error{Msg: fmt.Sprintf("%s analysis failed", kind), Err: err}
}
