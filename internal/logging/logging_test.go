package logging

import (
	"course-checkout/internal/config"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	Setup(config.Log{Level: "debug", Format: "text"})
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)

	Setup(config.Log{Level: "loud", Format: "json"})
	assert.Equal(t, log.InfoLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)
}
