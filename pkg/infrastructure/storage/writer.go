package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
)

// jsonLines appends one JSON document per line. Earlier runs are kept.
type jsonLines[T any] struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	encoder *json.Encoder
}

func openJSONLines[T any](filename string) (*jsonLines[T], error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(file)
	return &jsonLines[T]{file: file, buf: buf, encoder: json.NewEncoder(buf)}, nil
}

func (l *jsonLines[T]) encode(v T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.encoder.Encode(v)
}

func (l *jsonLines[T]) flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.buf.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

func (l *jsonLines[T]) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.buf.Flush(), l.file.Close())
}

// ResultWriter implements repository.ResultWriter
type ResultWriter struct {
	lines *jsonLines[*entity.Result]
}

// NewResultWriter opens the results file
func NewResultWriter(filename string) (*ResultWriter, error) {
	lines, err := openJSONLines[*entity.Result](filename)
	if err != nil {
		return nil, err
	}
	return &ResultWriter{lines: lines}, nil
}

// Write writes a single result
func (w *ResultWriter) Write(result *entity.Result) error { return w.lines.encode(result) }

// Flush pushes buffered results to disk
func (w *ResultWriter) Flush() error { return w.lines.flush() }

// Close flushes and closes the file
func (w *ResultWriter) Close() error { return w.lines.close() }

// LogWriter implements repository.LogWriter for fetch attempts
type LogWriter struct {
	lines *jsonLines[*entity.FetchAttempt]
}

// NewLogWriter opens the attempt log
func NewLogWriter(filename string) (*LogWriter, error) {
	lines, err := openJSONLines[*entity.FetchAttempt](filename)
	if err != nil {
		return nil, err
	}
	return &LogWriter{lines: lines}, nil
}

// WriteAttempt writes one fetch attempt
func (w *LogWriter) WriteAttempt(attempt *entity.FetchAttempt) error { return w.lines.encode(attempt) }

// Close flushes and closes the file
func (w *LogWriter) Close() error { return w.lines.close() }
