// Package logging builds the process logger: a size-rotated log file, plus a
// channel tee so the dashboard can show recent lines.
package logging

import (
	"bytes"
	"io"
	"log"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the rotated log file
type Config struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger writing to the rotated file and to every extra writer.
// Close the returned io.Closer on shutdown to release the file.
func New(config Config, extra ...io.Writer) (*log.Logger, io.Closer) {
	file := &lumberjack.Logger{
		Filename:   config.File,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
	}
	writers := append([]io.Writer{file}, extra...)
	return log.New(io.MultiWriter(writers...), "", log.LstdFlags|log.Lmicroseconds), file
}

// UILogWriter forwards every complete log line to a channel. Lines are dropped
// when the channel is full so logging never blocks on a slow reader.
type UILogWriter struct {
	mu      sync.Mutex
	partial []byte
	lines   chan string
	dropped int
}

// NewUILogWriter creates a writer whose channel buffers up to size lines
func NewUILogWriter(size int) *UILogWriter {
	if size <= 0 {
		panic("UILogWriter: size must be > 0")
	}
	return &UILogWriter{lines: make(chan string, size)}
}

// Lines is the channel the lines are sent on
func (w *UILogWriter) Lines() <-chan string {
	return w.lines
}

// Dropped returns how many lines were discarded on a full channel
func (w *UILogWriter) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *UILogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		line := string(w.partial[:i])
		w.partial = w.partial[i+1:]
		select {
		case w.lines <- line:
		default:
			w.dropped++
		}
	}
	if len(w.partial) == 0 {
		w.partial = nil
	}
	return len(p), nil
}
