package logger

import (
	"encoding/json"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gzhole/railguard/internal/redact"
)

// defaultMaxLogBytes is the rotation threshold for the audit log. The
// current file is renamed to <path>.1 and a fresh file is opened.
const defaultMaxLogBytes = 10 << 20

// AuditEvent is one line of the JSONL audit trail. Deployment stages and
// guard checks share the format; unused fields are omitted.
type AuditEvent struct {
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id,omitempty"`

	// Deployment fields
	Stage    string `json:"stage,omitempty"`
	Status   string `json:"status,omitempty"`
	BackupID string `json:"backup_id,omitempty"`

	// Guard fields
	Check   string   `json:"check,omitempty"`
	Tool    string   `json:"tool,omitempty"`
	Verdict string   `json:"verdict,omitempty"`
	Rule    string   `json:"rule,omitempty"`
	Found   []string `json:"found,omitempty"`

	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

type AuditLogger struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func New(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &AuditLogger{path: path, file: file}, nil
}

func (l *AuditLogger) Log(event AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Redact free-text fields before they hit disk. Structured fields
	// carry identifiers only.
	event.Detail = redact.Redact(event.Detail)
	if event.Error != "" {
		event.Error = redact.Redact(event.Error)
	}

	if err := l.rotateIfNeeded(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *AuditLogger) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < defaultMaxLogBytes {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(l.path, l.path+".1"); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	l.file = file
	return nil
}

func (l *AuditLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// NewOperational builds the structured logger used for progress and
// diagnostics on stderr. Audit events go through AuditLogger instead.
func NewOperational(verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
