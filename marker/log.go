package marker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// LogSink writes one JSON line per marker, tagged with a session id.
type LogSink struct {
	path   string
	w      io.Writer
	closer io.Closer

	session string
	logger  *slog.Logger
}

// NewLogSink writes markers to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{w: w, session: uuid.NewString()}
}

// NewFileSink appends markers to the file at path, created on Init.
func NewFileSink(path string) *LogSink {
	return &LogSink{path: path, session: uuid.NewString()}
}

func (s *LogSink) Session() string {
	return s.session
}

func (s *LogSink) Init() error {
	if s.path != "" {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		s.w, s.closer = f, f
	}
	if s.w == nil {
		return errors.New("marker: log sink has no destination")
	}

	s.logger = slog.New(slog.NewJSONHandler(s.w, nil)).With("session", s.session)
	s.logger.Info("session start")
	return nil
}

func (s *LogSink) Send(code Code, at time.Duration) error {
	if s.logger == nil {
		return errors.New("marker: log sink not initialized")
	}

	attrs := []slog.Attr{
		slog.String("code", code.String()),
		slog.Float64("t", at.Seconds()),
	}
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "marker", attrs...)
	return nil
}

func (s *LogSink) Shutdown() error {
	if s.logger != nil {
		s.logger.Info("session end")
		s.logger = nil
	}
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}
