// Package history persists chat transcripts as JSON arrays of {role, content} records.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samsaffron/aleph/internal/llm"
)

// ErrorKind classifies history failures.
type ErrorKind int

const (
	ErrNotFound ErrorKind = iota + 1
	ErrInvalidJSON
	ErrInvalidFormat
	ErrRead
	ErrWrite
)

// Error is a load or save failure. The in-memory history is never modified when one is returned.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrNotFound:
		return fmt.Sprintf("File %s not found.", e.Path)
	case ErrInvalidJSON:
		return fmt.Sprintf("Invalid JSON format in %s.", e.Path)
	case ErrInvalidFormat:
		return "Loaded history has an invalid format."
	case ErrRead:
		return fmt.Sprintf("Error reading history from %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("Error saving history to %s: %v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Save writes msgs to path as an indented JSON array, replacing the file atomically.
func Save(path string, msgs []llm.Message) error {
	if msgs == nil {
		msgs = []llm.Message{}
	}
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return &Error{Kind: ErrWrite, Path: path, Err: err}
	}
	data = append(data, '\n')

	if err := writeFileAtomic(path, data); err != nil {
		return &Error{Kind: ErrWrite, Path: path, Err: err}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	renamed = true
	return nil
}

// Load reads and validates a transcript written by Save.
func Load(path string) ([]llm.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: ErrNotFound, Path: path, Err: err}
		}
		return nil, &Error{Kind: ErrRead, Path: path, Err: err}
	}
	msgs, err := Decode(data)
	if err != nil {
		var histErr *Error
		if errors.As(err, &histErr) {
			histErr.Path = path
		}
		return nil, err
	}
	return msgs, nil
}

// record is the on-disk shape. Parts is accepted for transcripts written by older clients.
type record struct {
	Role    *string         `json:"role"`
	Content json.RawMessage `json:"content"`
	Parts   json.RawMessage `json:"parts"`
}

// Decode validates data as a transcript. Every element must be an object with a
// role of "user" or "model" and textual content.
func Decode(data []byte) ([]llm.Message, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || !json.Valid(data) {
			return nil, &Error{Kind: ErrInvalidJSON, Err: err}
		}
		// valid JSON, but not an array
		return nil, &Error{Kind: ErrInvalidFormat, Err: err}
	}
	if raw == nil {
		// a bare null
		return nil, &Error{Kind: ErrInvalidFormat, Err: errors.New("history is null")}
	}

	msgs := make([]llm.Message, 0, len(raw))
	for i, elem := range raw {
		msg, err := decodeRecord(elem)
		if err != nil {
			return nil, &Error{Kind: ErrInvalidFormat, Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func decodeRecord(elem json.RawMessage) (llm.Message, error) {
	if trimmed := bytes.TrimSpace(elem); len(trimmed) == 0 || trimmed[0] != '{' {
		return llm.Message{}, errors.New("not an object")
	}
	var rec record
	if err := json.Unmarshal(elem, &rec); err != nil {
		return llm.Message{}, err
	}
	if rec.Role == nil {
		return llm.Message{}, errors.New("missing role")
	}
	role := llm.Role(*rec.Role)
	if !role.Valid() {
		return llm.Message{}, fmt.Errorf("unknown role %q", *rec.Role)
	}

	switch {
	case !isNull(rec.Content):
		var content string
		if err := json.Unmarshal(rec.Content, &content); err != nil {
			return llm.Message{}, errors.New("content is not a string")
		}
		return llm.Message{Role: role, Content: content}, nil
	case !isNull(rec.Parts):
		content, err := flattenParts(rec.Parts)
		if err != nil {
			return llm.Message{}, err
		}
		return llm.Message{Role: role, Content: content}, nil
	default:
		return llm.Message{}, errors.New("missing content")
	}
}

// flattenParts accepts "text", ["a", "b"] or [{"text": "a"}, ...].
func flattenParts(raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return "", errors.New("parts is neither a string nor an array")
	}
	texts := make([]string, 0, len(elems))
	for _, elem := range elems {
		var text string
		if err := json.Unmarshal(elem, &text); err == nil {
			texts = append(texts, text)
			continue
		}
		var part struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(elem, &part); err != nil || part.Text == nil {
			return "", errors.New("part has no text")
		}
		texts = append(texts, *part.Text)
	}
	return strings.Join(texts, ""), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
