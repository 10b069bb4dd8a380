package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerWithWriter(&buf, false)
	GetLogger().Debug("hidden")
	GetLogger().Info("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "key=value")

	buf.Reset()
	InitLoggerWithWriter(&buf, true)
	GetCompatLogger().Debugf("frame %d", 7)
	assert.Contains(t, buf.String(), "frame 7")
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerWithWriter(&buf, false)
	ComponentLogger(nil, "muxer").Info("ready")
	assert.Contains(t, buf.String(), "component=muxer")
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []TableColumn{
		{Header: "NAME", Key: "name"},
		{Header: "SIZE", Key: "size"},
	}, []map[string]interface{}{
		{"name": "\033[32mintro\033[0m", "size": 10},
		{"name": "a", "size": 12345},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"NAME  SIZE",
		"----- -----",
		"\033[32mintro\033[0m 10",
		"a     12345",
	}, lines)
}

func TestRenderTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []TableColumn{{Header: "NAME", Key: "name"}}, nil)
	assert.Equal(t, "No data to display\n", buf.String())
}

func TestRenderTableAlignRight(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []TableColumn{
		{Header: "N", Key: "n", AlignRight: true},
		{Header: "NAME", Key: "name"},
	}, []map[string]interface{}{
		{"n": 7, "name": "a"},
		{"n": 123, "name": "b"},
	})
	assert.Equal(t, "  N NAME\n--- ----\n  7 a\n123 b\n", buf.String())
}
