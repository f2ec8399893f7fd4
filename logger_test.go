package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"", false, true, true},
		{"info", false, true, true},
		{" WARNING ", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		log := NewLogger(&buf, tc.level)
		log.Debug("dbg")
		log.Info("inf")
		log.Warn("wrn")
		log.Error("err")

		out := buf.String()
		assert.Equal(t, tc.wantDebug, strings.Contains(out, `"msg":"dbg"`), "level %q", tc.level)
		assert.Equal(t, tc.wantInfo, strings.Contains(out, `"msg":"inf"`), "level %q", tc.level)
		assert.Equal(t, tc.wantWarn, strings.Contains(out, `"msg":"wrn"`), "level %q", tc.level)
		assert.Contains(t, out, `"msg":"err"`, "level %q", tc.level)
	}
}

func TestLogging_RequestLine(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApp(t, NewMemoryDB())
	a.log = NewLogger(&buf, "info")
	h := a.Handler()

	do(t, h, "GET", "/health", nil, func(r *http.Request) { r.Header.Set(requestIDHeader, "req-1") })

	var line map[string]interface{}
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		if m["msg"] == "http.request" {
			line = m
		}
	}
	require.NotNil(t, line, buf.String())
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/health", line["path"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, "req-1", line["request_id"])
}
