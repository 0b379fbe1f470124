package installer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapExitCode(t *testing.T) {
	testCases := []struct {
		name           string
		code           int
		expected       Status
		rebootRequired bool
	}{
		{"clean success", 0, StatusSuccess, false},
		{"reboot required still counts as success", 3010, StatusSuccess, true},
		{"elevation required", 740, StatusRequiresElevation, false},
		{"user cancelled", 1602, StatusUserCancelled, false},
		{"arbitrary msi failure", 1603, StatusUnknownFailure, false},
		{"negative code", -1, StatusUnknownFailure, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, reboot := mapExitCode(tc.code)
			assert.Equal(t, tc.expected, status)
			assert.Equal(t, tc.rebootRequired, reboot)
		})
	}
}

func TestArguments(t *testing.T) {
	silent := NewRunner(DefaultOptions()).arguments()
	assert.Contains(t, silent, "/quiet")
	assert.Contains(t, silent, "PrependPath=1")
	assert.Contains(t, silent, "InstallAllUsers=0")
	assert.Contains(t, silent, "Include_launcher=1")
	assert.NotContains(t, silent, "/passive")

	passive := NewRunner(Options{Silent: false, AllUsers: true}).arguments()
	assert.Contains(t, passive, "/passive")
	assert.Contains(t, passive, "InstallAllUsers=1")
	assert.NotContains(t, passive, "/quiet")
	assert.NotContains(t, passive, "PrependPath=1")
}

func TestNewRunnerDefaultsTimeout(t *testing.T) {
	r := NewRunner(Options{Silent: true})
	assert.Equal(t, defaultWaitTimeout, r.opts.WaitTimeout)

	r = NewRunner(Options{WaitTimeout: time.Minute})
	assert.Equal(t, time.Minute, r.opts.WaitTimeout)
}
