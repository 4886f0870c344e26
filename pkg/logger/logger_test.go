package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(l *Logger) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{Logger: l.Logger.Output(&buf)}, &buf
}

func TestNew_StampsServiceField(t *testing.T) {
	log, buf := captureOutput(New("pharmacy-service", "production"))

	log.Info().Msg("hello")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pharmacy-service", line["service"])
	assert.Equal(t, "hello", line["message"])
}

func TestFieldHelpers(t *testing.T) {
	log, buf := captureOutput(New("pharmacy-service", "production"))

	log.WithRequestID("req-1").
		WithComponent("alert_scanner").
		WithDrugID("drug-1").
		WithError(errors.New("boom")).
		Error().Msg("scan failed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "alert_scanner", line["component"])
	assert.Equal(t, "drug-1", line["drug_id"])
	assert.Equal(t, "boom", line["error"])
}
