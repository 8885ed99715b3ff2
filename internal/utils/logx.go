package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logx writes plain human-readable lines: info and error lines to the console writer,
// and, when a log directory is configured, to info.log / error.log / debug.log as well.
type Logx struct {
	lg    *zap.Logger
	files []*os.File
}

// NewLogx builds a Logx writing to out. logPath may be empty. Debug lines are
// dropped unless debug is set.
func NewLogx(out io.Writer, logPath string, debug bool) *Logx {
	encCfg := zapcore.EncoderConfig{MessageKey: "msg", LineEnding: zapcore.DefaultLineEnding}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	consoleLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.InfoLevel || (debug && l == zapcore.DebugLevel)
	})
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), consoleLv),
	}

	m := &Logx{}
	if logPath != "" {
		if err := os.MkdirAll(logPath, 0744); err != nil {
			log.Printf("failed to create log dir %s: %v", logPath, err)
		} else {
			infoLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l == zapcore.InfoLevel })
			errLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel })
			dbgLv := zap.LevelEnablerFunc(func(l zapcore.Level) bool { return debug && l == zapcore.DebugLevel })

			cores = append(cores,
				zapcore.NewCore(encoder, m.openLogFile(filepath.Join(logPath, "info.log")), infoLv),
				zapcore.NewCore(encoder, m.openLogFile(filepath.Join(logPath, "error.log")), errLv),
				zapcore.NewCore(encoder, m.openLogFile(filepath.Join(logPath, "debug.log")), dbgLv),
			)
		}
	}

	m.lg = zap.New(zapcore.NewTee(cores...))
	return m
}

func (m *Logx) openLogFile(path string) zapcore.WriteSyncer {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", path, err)
		return zapcore.AddSync(io.Discard)
	}
	m.files = append(m.files, f)
	return zapcore.Lock(f)
}

func (m *Logx) Infof(format string, args ...any) {
	m.lg.Info(fmt.Sprintf(format, args...))
}

func (m *Logx) Errorf(format string, args ...any) {
	m.lg.Error(fmt.Sprintf(format, args...))
}

func (m *Logx) Debugf(format string, args ...any) {
	m.lg.Debug(fmt.Sprintf(format, args...))
}

// Close flushes the logger and closes any log files.
func (m *Logx) Close() error {
	_ = m.lg.Sync()
	var firstErr error
	for _, f := range m.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.files = nil
	return firstErr
}
