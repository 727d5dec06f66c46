package interfaces

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViaListAcceptsStringAndList(t *testing.T) {
	var device Device
	require.NoError(t, json.Unmarshal([]byte(`{"via": "gw-1"}`), &device))
	assert.Equal(t, ViaList{"gw-1"}, device.Via)

	device = Device{}
	require.NoError(t, json.Unmarshal([]byte(`{"via": ["gw-1", "gw-2"]}`), &device))
	assert.Equal(t, ViaList{"gw-1", "gw-2"}, device.Via)

	device = Device{}
	require.NoError(t, json.Unmarshal([]byte(`{"via": ""}`), &device))
	assert.Empty(t, device.Via)
	assert.False(t, device.IsGatewayCapable())

	assert.Error(t, json.Unmarshal([]byte(`{"via": 42}`), &device))
}

func TestViaListContains(t *testing.T) {
	via := ViaList{"gw-1", "gw-2"}
	assert.True(t, via.Contains("gw-1"))
	assert.False(t, via.Contains("gw-3"))
	assert.False(t, ViaList(nil).Contains("gw-1"))
}

func TestCacheDirectiveString(t *testing.T) {
	assert.Equal(t, "no-cache", NoCacheDirective().String())
	assert.Equal(t, "max-age=300", MaxAgeDirective(5*time.Minute).String())
}

func TestDeviceEnabledDefault(t *testing.T) {
	device := &Device{}
	assert.True(t, device.IsEnabled())

	disabled := false
	device.Enabled = &disabled
	assert.False(t, device.IsEnabled())
}

func TestDeviceCloneIsDeep(t *testing.T) {
	enabled := true
	device := &Device{
		Enabled:  &enabled,
		Via:      ViaList{"gw-1"},
		Defaults: map[string]any{"content-type": "text/plain"},
		LastVia:  &LastVia{DeviceID: "gw-1"},
	}

	clone := device.Clone()
	clone.Via[0] = "tampered"
	clone.Defaults["content-type"] = "tampered"
	clone.LastVia.DeviceID = "tampered"
	*clone.Enabled = false

	assert.Equal(t, "gw-1", device.Via[0])
	assert.Equal(t, "text/plain", device.Defaults["content-type"])
	assert.Equal(t, "gw-1", device.LastVia.DeviceID)
	assert.True(t, *device.Enabled)
}
