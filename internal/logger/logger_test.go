package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		want    zerolog.Level
		wantErr bool
	}{
		{name: "default info", config: Config{}, want: zerolog.InfoLevel},
		{name: "explicit warn", config: Config{Level: "warn"}, want: zerolog.WarnLevel},
		{name: "debug wins", config: Config{Level: "error", Debug: true}, want: zerolog.DebugLevel},
		{name: "bad level", config: Config{Level: "chatty"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

func TestNewTestLoggerDiscards(t *testing.T) {
	log := NewTestLogger()
	assert.Equal(t, zerolog.Disabled, log.GetLevel())
}
