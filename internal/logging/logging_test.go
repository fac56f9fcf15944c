package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			want:    filepath.Join("logs", "drivescene.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			want:    filepath.Join(".", "logs", "drivescene.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "drivescene"),
			want:    filepath.Join("/var", "log", "drivescene", "drivescene.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "drivescene", sessionStart))
		})
	}
}

func TestOpenLogFile_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	start := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	f, err := OpenLogFile(dir, "drivescene", start)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	_, err = os.Stat(LogFilePath(dir, "drivescene", start))
	assert.NoError(t, err)
}
