package engine

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxLine bounds a buffered line; longer output is flushed in pieces.
const maxLine = 64 * 1024

// lineWriter logs each complete line written to it.
type lineWriter struct {
	mu     sync.Mutex
	log    *zap.Logger
	level  zapcore.Level
	stream string
	buf    bytes.Buffer
}

func newLineWriter(log *zap.Logger, level zapcore.Level, stream string) *lineWriter {
	return &lineWriter{log: log, level: level, stream: stream}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := w.buf.Next(i + 1)
		w.emit(line[:i])
	}
	if w.buf.Len() >= maxLine {
		w.emit(w.buf.Next(w.buf.Len()))
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.emit(w.buf.Next(w.buf.Len()))
	}
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if ce := w.log.Check(w.level, string(line)); ce != nil {
		ce.Write(zap.String("stream", w.stream))
	}
}
