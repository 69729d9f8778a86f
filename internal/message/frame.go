package message

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Delimiter terminates every frame on a byte stream.
const Delimiter = '\n'

// DefaultMaxFrameSize bounds a single frame when no size is configured.
const DefaultMaxFrameSize = 1024

var (
	// ErrFrameTooLarge - a frame does not fit in the configured max size.
	ErrFrameTooLarge = errors.New("message: frame exceeds max size")

	// ErrEmbeddedDelimiter - an encoded message carries a line break, which
	// would split it into two frames on a line-framed stream.
	ErrEmbeddedDelimiter = errors.New("message: frame contains a line break")
)

// CheckFrame reports whether line can travel as exactly one frame.
func CheckFrame(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return ErrEmbeddedDelimiter
	}
	return nil
}

// AppendFrame appends the encoded form of m followed by Delimiter.
func AppendFrame(dst []byte, m Message) []byte {
	dst = append(dst, Encode(m)...)
	return append(dst, Delimiter)
}

// Frame returns m encoded and terminated, ready to be written to a stream.
func Frame(m Message) []byte {
	return AppendFrame(nil, m)
}

// Scanner splits a byte stream into frames. A frame is one encoded message
// without its delimiter; a trailing "\r" is dropped.
type Scanner struct {
	sc *bufio.Scanner
}

// NewScanner reads frames of at most maxSize bytes from r.
func NewScanner(r io.Reader, maxSize int) *Scanner {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(maxSize, 4096)), maxSize)
	sc.Split(bufio.ScanLines)
	return &Scanner{sc: sc}
}

// Next returns the next frame. It returns io.EOF once the stream is
// exhausted and ErrFrameTooLarge when a frame does not fit.
func (s *Scanner) Next() (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	err := s.sc.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return "", ErrFrameTooLarge
	default:
		return "", fmt.Errorf("message: read frame: %w", err)
	}
}
