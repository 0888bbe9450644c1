// Package audio handles device discovery, selection, and PCM capture streams.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse input source surfaced to ari.
type Device struct {
	Index       int
	ID          string
	Description string
	State       string
	SampleRate  int
	Available   bool
	Muted       bool
	Default     bool
	Monitor     bool
}

// Usable reports whether the source can deliver microphone audio right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted && !d.Monitor
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
	// Resample is set when the device's native rate differs from the requested rate.
	Resample bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("ari"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns available Pulse input sources in server order.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultID := ""
	if defaultSource, err := client.DefaultSource(); err == nil {
		defaultID = defaultSource.ID()
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			Index:       len(devices),
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			SampleRate:  int(source.SampleSpec.Rate),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
			Monitor:     strings.HasSuffix(source.SourceName, ".monitor"),
		})
	}
	return devices, nil
}

// SelectDevice resolves the audio.input preference against live devices.
func SelectDevice(ctx context.Context, input string, sampleRate int) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, sampleRate)
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
//
// An explicit input term must match. "default" picks the Pulse default source. Anything else
// ("", "auto") prefers the first usable source running natively at sampleRate and falls back
// to the source at index 0.
func selectDeviceFromList(devices []Device, input string, sampleRate int) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	input = strings.TrimSpace(strings.ToLower(input))

	switch input {
	case "", "auto":
		for _, dev := range devices {
			if dev.Usable() && dev.SampleRate == sampleRate {
				return newSelection(dev, sampleRate, ""), nil
			}
		}
		first := devices[0]
		warning := fmt.Sprintf("no input device runs natively at %d Hz; using %q", sampleRate, first.ID)
		selection := newSelection(first, sampleRate, warning)
		selection.Fallback = true
		return selection, nil
	case "default":
		for _, dev := range devices {
			if dev.Default {
				return checkUsable(newSelection(dev, sampleRate, ""))
			}
		}
		return Selection{}, errors.New("default audio source is unavailable")
	default:
		for _, dev := range devices {
			if deviceMatches(dev, input) {
				return checkUsable(newSelection(dev, sampleRate, ""))
			}
		}
		return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
	}
}

func newSelection(dev Device, sampleRate int, warning string) Selection {
	return Selection{
		Device:   dev,
		Warning:  warning,
		Resample: dev.SampleRate > 0 && dev.SampleRate != sampleRate,
	}
}

func checkUsable(selection Selection) (Selection, error) {
	if selection.Device.Muted {
		return Selection{}, fmt.Errorf("audio device %q is muted", selection.Device.ID)
	}
	if !selection.Device.Available {
		return Selection{}, fmt.Errorf("audio device %q is not available", selection.Device.ID)
	}
	return selection, nil
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
