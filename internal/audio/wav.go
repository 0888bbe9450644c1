package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WritePCM16WAV writes raw little-endian PCM bytes with a minimal WAV header.
func WritePCM16WAV(w io.Writer, pcm []byte, sampleRate int, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	header := make([]byte, 44)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// WAVInfo is the decoded format of a PCM16 WAV payload.
type WAVInfo struct {
	SampleRate int
	Channels   int
}

// ReadPCM16WAV decodes a 16-bit PCM WAV stream and returns mono samples.
//
// Stereo input is downmixed. Streaming writers that emit a placeholder data size are
// tolerated by reading the data chunk to EOF.
func ReadPCM16WAV(r io.Reader) ([]int16, WAVInfo, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, WAVInfo{}, fmt.Errorf("read wav: %w", err)
	}
	if len(content) < 12 || !bytes.Equal(content[0:4], []byte("RIFF")) || !bytes.Equal(content[8:12], []byte("WAVE")) {
		return nil, WAVInfo{}, errors.New("not a RIFF/WAVE payload")
	}

	var (
		info      WAVInfo
		bits      int
		haveFmt   bool
		offset    = 12
		dataBytes []byte
	)

	for offset+8 <= len(content) {
		id := string(content[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(content[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if size < 0 || end > len(content) {
			end = len(content)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, WAVInfo{}, errors.New("short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(content[body:])
			if format != 1 {
				return nil, WAVInfo{}, fmt.Errorf("unsupported wav format %d", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(content[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(content[body+4:]))
			bits = int(binary.LittleEndian.Uint16(content[body+14:]))
			haveFmt = true
		case "data":
			dataBytes = content[body:end]
		}

		if dataBytes != nil {
			break
		}
		offset = end + size%2
	}

	if !haveFmt {
		return nil, WAVInfo{}, errors.New("missing fmt chunk")
	}
	if bits != 16 {
		return nil, WAVInfo{}, fmt.Errorf("unsupported bits per sample %d", bits)
	}
	if info.Channels <= 0 {
		return nil, WAVInfo{}, errors.New("invalid channel count")
	}

	samples := Frame(dataBytes).Samples()
	if info.Channels == 1 {
		return samples, info, nil
	}

	mono := make([]int16, len(samples)/info.Channels)
	for i := range mono {
		sum := 0
		for ch := 0; ch < info.Channels; ch++ {
			sum += int(samples[i*info.Channels+ch])
		}
		mono[i] = int16(sum / info.Channels)
	}
	return mono, info, nil
}
