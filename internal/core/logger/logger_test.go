package logger

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRotateFileGetsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, flush := New(Options{Level: "warn", Rotate: FileRotate{Enable: true, Filename: path}})

	l.Info("dropped")
	l.Warn("kept")
	undo := RedirectStdLog(l, zapcore.ErrorLevel)
	log.Print("from std log")
	undo()
	flush()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "dropped")
	assert.Contains(t, string(b), `"msg":"kept"`)
	assert.Contains(t, string(b), "from std log")
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	l, flush := New(Options{Level: "loud"})
	defer flush()
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
