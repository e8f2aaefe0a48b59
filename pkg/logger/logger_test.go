package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_LevelOnLogger(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, New(Config{Level: "debug"}).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New(Config{Level: "WARN"}).GetLevel())
}

func TestNew_UnknownLevelMeansInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, New(Config{Level: "verbose"}).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, New(Config{}).GetLevel())
}
