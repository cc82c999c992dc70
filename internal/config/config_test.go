package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kinematic_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesKeyValueFile(t *testing.T) {
	path := writeConfig(t, `
# MQTT
MQTT_BROKER=tcp://localhost:1883
MQTT_CLIENT_ID_PIPELINE=kinematic-pipeline

REFERENCE_DEVICE=pelvis
REQUIRED_DEVICES=pelvis, left_wrist, right_wrist
WEB_SERVER_PORT=9090
ROLLING_BUFFER_SIZE=500
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "kinematic-pipeline", cfg.MQTTClientIDPipeline)
	assert.Equal(t, "pelvis", cfg.ReferenceDevice)
	assert.Equal(t, []string{"pelvis", "left_wrist", "right_wrist"}, cfg.RequiredDevices)
	assert.Equal(t, 9090, cfg.WebServerPort)
	assert.Equal(t, 500, cfg.RollingBufferSize)
}

func TestLoad_DefaultsApplyWhenUnset(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
REFERENCE_DEVICE=pelvis
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.SourceRateHz)
	assert.Equal(t, 30, cfg.TargetRateHz)
	assert.Equal(t, 10, cfg.DecimationStrideNum)
	assert.Equal(t, 3, cfg.DecimationStrideDen)
	assert.Equal(t, 3, cfg.CalibrationCaptureSeconds)
	assert.Equal(t, 300, cfg.RollingBufferSize)
	assert.Equal(t, "kinematic/frame", cfg.TopicFrame)
	assert.Equal(t, ":8000", cfg.IngestListenAddr)
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
REFERENCE_DEVICE=pelvis
NO_SUCH_KEY=1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_SUCH_KEY")
}

func TestLoad_RequiresBrokerAndReferenceDevice(t *testing.T) {
	_, err := Load(writeConfig(t, "REFERENCE_DEVICE=pelvis\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_BROKER")

	_, err = Load(writeConfig(t, "MQTT_BROKER=tcp://localhost:1883\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFERENCE_DEVICE")
}

func TestLoad_RejectsInconsistentStride(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
REFERENCE_DEVICE=pelvis
SOURCE_RATE_HZ=100
TARGET_RATE_HZ=25
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stride")
}

func TestLoad_RejectsNonPositiveValues(t *testing.T) {
	path := writeConfig(t, `
MQTT_BROKER=tcp://localhost:1883
REFERENCE_DEVICE=pelvis
TARGET_RATE_HZ=0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_RATE_HZ")
}
