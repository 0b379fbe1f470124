package util

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentFormatterRendersEntry(t *testing.T) {
	f := newAgentFormatter()
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2026, time.August, 26, 9, 0, 0, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "download stalled",
		Data:    log.Fields{"version": "3.12.1", "attempt": 2},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "2026-08-26T09:00:00Z WARN")
	assert.Contains(t, line, "download stalled")
	// fields render sorted for stable output
	assert.Contains(t, line, "[attempt: 2, version: 3.12.1]")
}

func TestAgentFormatterLevelTags(t *testing.T) {
	f := newAgentFormatter()
	cases := []struct {
		level log.Level
		tag   string
	}{
		{log.ErrorLevel, "ERRO"},
		{log.InfoLevel, "INFO"},
		{log.DebugLevel, "DEBG"},
		{log.TraceLevel, "TRAC"},
	}

	for _, tc := range cases {
		entry := &log.Entry{
			Logger:  log.StandardLogger(),
			Time:    time.Now(),
			Level:   tc.level,
			Message: "x",
		}
		out, err := f.Format(entry)
		require.NoError(t, err)
		assert.Contains(t, string(out), " "+tc.tag)
	}
}

func TestCallerSourceTrimsToPackageAndFile(t *testing.T) {
	assert.Equal(t, "scheduler/scheduler.go:151",
		callerSource("/home/dev/src/app/client/internal/scheduler/scheduler.go", 151))
	assert.Equal(t, "util/log.go:42",
		callerSource("/work/app/util/log.go", 42))
}
