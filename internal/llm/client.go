package llm

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client owns the active chat session and the committed conversation history.
// Every service call goes through the retry policy.
type Client struct {
	backend Backend
	retry   *retrier
	logger  *zap.Logger
	warn    func(string)

	mu      sync.Mutex
	session ChatSession
	model   string
	system  string
	history []Message
}

// NewClient creates a client. A nil logger disables logging.
func NewClient(backend Backend, config RetryConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		backend: backend,
		logger:  logger,
		warn:    func(string) {},
	}
	c.retry = &retrier{
		config:  config,
		sleep:   sleepContext,
		onRetry: c.reportRetry,
	}
	return c
}

// SetWarnFunc sets the callback that receives user-facing retry and cleanup warnings.
func (c *Client) SetWarnFunc(fn func(string)) {
	if fn == nil {
		fn = func(string) {}
	}
	c.warn = fn
}

func (c *Client) reportRetry(op string, attempt int, wait time.Duration, err error) {
	c.logger.Warn("transient service error",
		zap.String("op", op),
		zap.Int("attempt", attempt),
		zap.Duration("wait", wait),
		zap.Error(err),
	)
	c.warn(fmt.Sprintf("API Error on %s attempt %d. Retrying in %s...", op, attempt, formatSeconds(wait)))
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

// InitializeSession starts a new chat with model, system instruction and prior history.
// The previous session and history are kept unless the new session is created.
func (c *Client) InitializeSession(ctx context.Context, model, system string, history []Message) error {
	history = slices.Clone(history)

	var session ChatSession
	err := c.retry.do(ctx, "session", func(ctx context.Context) error {
		var err error
		session, err = c.backend.StartChat(ctx, model, system, history)
		return err
	})
	if err != nil {
		c.logger.Error("failed to start chat", zap.String("model", model), zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.session = session
	c.model = model
	c.system = system
	c.history = history
	c.mu.Unlock()

	c.logger.Info("chat session started",
		zap.String("model", model),
		zap.Int("history", len(history)),
	)
	return nil
}

// History returns a copy of the committed conversation.
func (c *Client) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

func (c *Client) System() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.system
}

// SendMessageStream sends text to the active session.
// The exchange is appended to History only when the stream is read to the end without error.
func (c *Client) SendMessageStream(ctx context.Context, text string) (*TextStream, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, ErrNoSession
	}

	seq := c.retrySeq(ctx, "chat", func(ctx context.Context) iter.Seq2[string, error] {
		return session.SendStream(ctx, text)
	})
	return newTextStream(seq, func(reply string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		// a /clear or /load may have replaced the session mid-stream
		if c.session != session {
			return
		}
		c.history = append(c.history, UserText(text), ModelText(reply))
	}), nil
}

// GenerateWithFiles runs a one-shot request over uploaded files. History is not touched.
func (c *Client) GenerateWithFiles(ctx context.Context, model, prompt string, files []File) *TextStream {
	return NewTextStream(c.retrySeq(ctx, "file", func(ctx context.Context) iter.Seq2[string, error] {
		return c.backend.GenerateStream(ctx, model, prompt, files)
	}))
}

// UploadFile uploads a local file.
func (c *Client) UploadFile(ctx context.Context, path string) (File, error) {
	var file File
	err := c.retry.do(ctx, "upload", func(ctx context.Context) error {
		var err error
		file, err = c.backend.Upload(ctx, path)
		return err
	})
	if err != nil {
		c.logger.Error("upload failed", zap.String("path", path), zap.Error(err))
		return File{}, err
	}
	c.logger.Debug("uploaded", zap.String("path", path), zap.String("name", file.Name))
	return file, nil
}

// DeleteFile removes an uploaded file and reports whether it succeeded.
// Failures are surfaced as warnings, never returned.
func (c *Client) DeleteFile(ctx context.Context, file File) bool {
	if err := c.backend.Delete(ctx, file.Name); err != nil {
		c.logger.Warn("delete failed", zap.String("name", file.Name), zap.Error(err))
		c.warn(fmt.Sprintf("Failed to delete uploaded file '%s': %v", file.Name, err))
		return false
	}
	c.logger.Debug("deleted", zap.String("name", file.Name))
	return true
}

// retrySeq re-opens the stream on transient failures. When a failed attempt
// had already delivered fragments, errRestarted is yielded before the next
// attempt so the reader can discard them.
func (c *Client) retrySeq(ctx context.Context, op string, open func(ctx context.Context) iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		dirty := false
		err := c.retry.do(ctx, op, func(ctx context.Context) error {
			if dirty {
				if !yield("", errRestarted) {
					return errStopped
				}
				dirty = false
			}
			for text, err := range open(ctx) {
				if err != nil {
					return err
				}
				dirty = true
				if !yield(text, nil) {
					return errStopped
				}
			}
			return nil
		})
		if err != nil && err != errStopped {
			c.logger.Error("stream failed", zap.String("op", op), zap.Error(err))
			yield("", err)
		}
	}
}
