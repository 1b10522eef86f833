// Package common holds the logger shared by the portal and the CLI.
package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bobmcallan/dodgy-dave/internal/config"
	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

const (
	timeFormat = "2006-01-02T15:04:05Z07:00"

	defaultLogFile    = "logs/dodgy-dave.log"
	defaultMaxSize    = 500 * 1024
	defaultMaxBackups = 20
)

// Logger is the arbor logger used across the portal.
type Logger struct {
	arbor.ILogger
}

// NewLoggerFromConfig builds a logger from the [logging] section. Unknown
// outputs are skipped; a memory writer is always attached.
func NewLoggerFromConfig(cfg config.LoggingConfig) *Logger {
	l := arbor.NewLogger()
	for _, wc := range writerConfigs(cfg) {
		switch wc.Type {
		case models.LogWriterTypeConsole:
			l = l.WithConsoleWriter(wc)
		case models.LogWriterTypeFile:
			l = l.WithFileWriter(wc)
		}
	}
	l = l.WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory})

	return &Logger{ILogger: l.WithLevelFromString(levelOrDefault(cfg.Level))}
}

// writerConfigs maps configured output names to arbor writer settings.
func writerConfigs(cfg config.LoggingConfig) []models.WriterConfiguration {
	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"console"}
	}

	var out []models.WriterConfiguration
	for _, name := range outputs {
		switch name {
		case "console":
			out = append(out, models.WriterConfiguration{
				Type:       models.LogWriterTypeConsole,
				Writer:     os.Stderr,
				TimeFormat: timeFormat,
			})
		case "file":
			wc := models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   cfg.FilePath,
				MaxSize:    int64(cfg.MaxSizeMB) << 20,
				MaxBackups: cfg.MaxBackups,
				TimeFormat: timeFormat,
			}
			if wc.FileName == "" {
				wc.FileName = defaultLogFile
			}
			if wc.MaxSize <= 0 {
				wc.MaxSize = defaultMaxSize
			}
			if wc.MaxBackups <= 0 {
				wc.MaxBackups = defaultMaxBackups
			}
			out = append(out, wc)
		}
	}
	return out
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

// NewLoggerWithOutput logs plain text lines to w, for the CLI's stderr and for
// capturing in tests. w is installed as arbor's console writer, so the most
// recent call wins.
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	level = levelOrDefault(level)
	arbor.RegisterWriter(arbor.WRITER_CONSOLE, &textWriter{out: w, min: log.ParseLevel(level)})

	l := arbor.NewLogger().
		WithMemoryWriter(models.WriterConfiguration{Type: models.LogWriterTypeMemory}).
		WithLevelFromString(level)
	return &Logger{ILogger: l}
}

// NewSilentLogger drops every event. An explicit writer keeps events away
// from globally registered ones.
func NewSilentLogger() *Logger {
	return &Logger{ILogger: arbor.NewLogger().WithWriters([]writers.IWriter{discard{}})}
}

// WithCorrelationId tags every event with a request ID.
func (l *Logger) WithCorrelationId(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}

// WithComponent tags every event with the subsystem that logged it.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{ILogger: l.ILogger.WithPrefix(name)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error)           { return len(p), nil }
func (d discard) WithLevel(_ log.Level) writers.IWriter { return d }
func (discard) GetFilePath() string                   { return "" }
func (discard) Close() error                          { return nil }

// textWriter renders arbor's JSON events as
// "level [component] message key=value ... cid=id".
type textWriter struct {
	out io.Writer
	min log.Level
}

func (w *textWriter) Write(p []byte) (int, error) {
	var evt models.LogEvent
	if err := json.Unmarshal(p, &evt); err != nil {
		return w.out.Write(p)
	}
	if evt.Level < w.min {
		return len(p), nil
	}
	if _, err := io.WriteString(w.out, formatEvent(evt)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *textWriter) WithLevel(level log.Level) writers.IWriter {
	w.min = level
	return w
}

func (w *textWriter) GetFilePath() string { return "" }
func (w *textWriter) Close() error        { return nil }

func formatEvent(evt models.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Level.String())
	if evt.Prefix != "" {
		fmt.Fprintf(&b, " [%s]", evt.Prefix)
	}
	b.WriteByte(' ')
	b.WriteString(evt.Message)

	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, evt.Fields[k])
	}

	if evt.Error != "" {
		fmt.Fprintf(&b, " error=%s", evt.Error)
	}
	if evt.CorrelationID != "" {
		fmt.Fprintf(&b, " cid=%s", evt.CorrelationID)
	}
	b.WriteByte('\n')
	return b.String()
}
