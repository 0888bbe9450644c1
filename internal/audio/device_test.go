package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectDeviceFromListPrefersNativeRate(t *testing.T) {
	devices := []Device{
		{Index: 0, ID: "hdmi", Description: "HDMI capture", SampleRate: 48000, Available: true, Default: true},
		{Index: 1, ID: "usb-mic", Description: "USB Mic", SampleRate: 16000, Available: true},
	}

	selection, err := selectDeviceFromList(devices, "auto", 16000)
	require.NoError(t, err)
	require.Equal(t, "usb-mic", selection.Device.ID)
	require.False(t, selection.Resample)
	require.False(t, selection.Fallback)
	require.Empty(t, selection.Warning)
}

func TestSelectDeviceFromListSkipsMutedAndMonitorSources(t *testing.T) {
	devices := []Device{
		{Index: 0, ID: "first", SampleRate: 44100, Available: true},
		{Index: 1, ID: "sink.monitor", SampleRate: 16000, Available: true, Monitor: true},
		{Index: 2, ID: "muted", SampleRate: 16000, Available: true, Muted: true},
		{Index: 3, ID: "good", SampleRate: 16000, Available: true},
	}

	selection, err := selectDeviceFromList(devices, "", 16000)
	require.NoError(t, err)
	require.Equal(t, "good", selection.Device.ID)
}

func TestSelectDeviceFromListFallsBackToIndexZero(t *testing.T) {
	devices := []Device{
		{Index: 0, ID: "first", SampleRate: 44100, Available: true},
		{Index: 1, ID: "second", SampleRate: 48000, Available: true},
	}

	selection, err := selectDeviceFromList(devices, "auto", 16000)
	require.NoError(t, err)
	require.Equal(t, "first", selection.Device.ID)
	require.True(t, selection.Fallback)
	require.True(t, selection.Resample)
	require.Contains(t, selection.Warning, "16000 Hz")
}

func TestSelectDeviceFromListExplicitInput(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono", SampleRate: 48000, Available: true},
		{ID: "alsa_input.pci", Description: "Built-in", SampleRate: 16000, Available: true, Default: true},
	}

	selection, err := selectDeviceFromList(devices, "Wave 3", 16000)
	require.NoError(t, err)
	require.Equal(t, "alsa_input.usb-elgato", selection.Device.ID)
	require.True(t, selection.Resample)

	_, err = selectDeviceFromList(devices, "missing", 16000)
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestSelectDeviceFromListDefaultSource(t *testing.T) {
	devices := []Device{
		{ID: "a", SampleRate: 16000, Available: true},
		{ID: "b", SampleRate: 16000, Available: true, Default: true, Muted: true},
	}

	_, err := selectDeviceFromList(devices, "default", 16000)
	require.Error(t, err)
	require.Contains(t, err.Error(), "muted")

	devices[1].Muted = false
	selection, err := selectDeviceFromList(devices, "default", 16000)
	require.NoError(t, err)
	require.Equal(t, "b", selection.Device.ID)
}

func TestSelectDeviceFromListEmpty(t *testing.T) {
	_, err := selectDeviceFromList(nil, "auto", 16000)
	require.Error(t, err)
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono"}
	require.True(t, deviceMatches(dev, "elgato"))
	require.True(t, deviceMatches(dev, "wave 3"))
	require.False(t, deviceMatches(dev, "missing"))
	require.False(t, deviceMatches(dev, ""))
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

type sourcePort struct {
	name      string
	available uint32
}

func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))

	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}

	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
