package llm

import (
	"errors"
	"io"
	"iter"
	"strings"
)

// ErrStreamClosed is returned by Recv after Close was called on an unfinished stream.
var ErrStreamClosed = errors.New("stream closed")

// errRestarted is yielded by a producer that starts over; the text received so far is dropped.
var errRestarted = errors.New("stream restarted")

// TextStream yields text fragments until io.EOF.
// It is not safe for concurrent use.
type TextStream struct {
	next   func() (string, error, bool)
	stop   func()
	text   strings.Builder
	onDone func(string)
	done   bool
	err    error
}

// NewTextStream wraps seq in a pull-style stream.
func NewTextStream(seq iter.Seq2[string, error]) *TextStream {
	return newTextStream(seq, nil)
}

// newTextStream calls onDone with the accumulated text once seq is exhausted without error.
func newTextStream(seq iter.Seq2[string, error], onDone func(string)) *TextStream {
	next, stop := iter.Pull2(seq)
	return &TextStream{next: next, stop: stop, onDone: onDone}
}

// Recv returns the next fragment, io.EOF at the end, or the error that ended the stream.
func (s *TextStream) Recv() (string, error) {
	if s.done {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}

	for {
		chunk, err, ok := s.next()
		if !ok {
			s.finish(nil)
			return "", io.EOF
		}
		if errors.Is(err, errRestarted) {
			s.text.Reset()
			continue
		}
		if err != nil {
			s.finish(err)
			return "", err
		}
		s.text.WriteString(chunk)
		return chunk, nil
	}
}

// Text returns everything received so far in the current attempt.
func (s *TextStream) Text() string {
	return s.text.String()
}

// Close releases the underlying producer. It is safe to call more than once.
func (s *TextStream) Close() error {
	if !s.done {
		s.done = true
		s.err = ErrStreamClosed
		s.stop()
	}
	return nil
}

func (s *TextStream) finish(err error) {
	s.done = true
	s.err = err
	s.stop()
	if err == nil && s.onDone != nil {
		s.onDone(s.text.String())
	}
}

// Collect drains s and returns the full text. On error the partial text is returned with it.
func Collect(s *TextStream) (string, error) {
	defer s.Close()
	for {
		_, err := s.Recv()
		if err == io.EOF {
			return s.Text(), nil
		}
		if err != nil {
			return s.Text(), err
		}
	}
}
