package roomconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Addr:               ":3002",
		MaxConnections:      10,
		CPURejectThreshold:  75,
		CPUPauseThreshold:   80,
		LogLevel:            "info",
		LogFormat:           "json",
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsEmptyAddr(t *testing.T) {
	c := validConfig()
	c.Addr = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNonPositiveMaxConnections(t *testing.T) {
	c := validConfig()
	c.MaxConnections = 0
	assert.Error(t, c.Validate())
}

func TestValidateRejectsOutOfRangeCPUThresholds(t *testing.T) {
	c := validConfig()
	c.CPURejectThreshold = 150
	assert.Error(t, c.Validate())
}

func TestValidateRejectsPauseThresholdBelowRejectThreshold(t *testing.T) {
	c := validConfig()
	c.CPURejectThreshold = 80
	c.CPUPauseThreshold = 75
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	c := validConfig()
	c.LogFormat = "xml"
	assert.Error(t, c.Validate())
}
