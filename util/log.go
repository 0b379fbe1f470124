package util

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLog parses and sets log-level input
func InitLog(logLevel string, logPath string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Errorf("Failed parsing log-level %s: %s", logLevel, err)
		return err
	}

	if logPath != "" && logPath != "console" {
		lumberjackLogger := &lumberjack.Logger{
			// Log file absolute path, os agnostic
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.Writer(lumberjackLogger))
	}

	log.SetFormatter(newAgentFormatter())
	log.SetReportCaller(true)
	log.SetLevel(level)
	return nil
}

var levelTags = map[log.Level]string{
	log.PanicLevel: "PANC",
	log.FatalLevel: "FATL",
	log.ErrorLevel: "ERRO",
	log.WarnLevel:  "WARN",
	log.InfoLevel:  "INFO",
	log.DebugLevel: "DEBG",
	log.TraceLevel: "TRAC",
}

// agentFormatter renders entries as
//
//	2026-08-26T09:00:00Z INFO scheduler/scheduler.go:151: scheduled check fire [key: value]
type agentFormatter struct {
	timestampFormat string
}

func newAgentFormatter() *agentFormatter {
	return &agentFormatter{timestampFormat: time.RFC3339}
}

// Format renders a single log entry
func (f *agentFormatter) Format(entry *log.Entry) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString(entry.Time.Format(f.timestampFormat))
	sb.WriteByte(' ')
	sb.WriteString(levelTags[entry.Level])
	if entry.Caller != nil {
		sb.WriteByte(' ')
		sb.WriteString(callerSource(entry.Caller.File, entry.Caller.Line))
	}
	sb.WriteString(": ")
	sb.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s: %v", k, entry.Data[k]))
		}
		sb.WriteString(fmt.Sprintf(" [%s]", strings.Join(pairs, ", ")))
	}

	sb.WriteByte('\n')
	return []byte(sb.String()), nil
}

// callerSource trims the caller's absolute path down to package/file.go:line
func callerSource(file string, line int) string {
	slashed := filepath.ToSlash(file)
	_, pkg := path.Split(path.Dir(slashed))
	return fmt.Sprintf("%s/%s:%d", pkg, path.Base(slashed), line)
}
