package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const WAVHeaderSize = 44

// WAVHeader is the canonical 44-byte RIFF/PCM header.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 = PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * 2
	BlockAlign    uint16 // NumChannels * 2
	BitsPerSample uint16 // 16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data bytes
}

// EncodeWAV serializes 16-bit PCM samples (interleaved when channels > 1)
// into an in-memory WAV file, little-endian throughout.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	dataBytes := uint32(len(samples) * bytesPerSamp)
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataBytes,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * bytesPerSamp),
		BlockAlign:    uint16(channels * bytesPerSamp),
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataBytes,
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(samples)*bytesPerSamp))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("writing wav header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("writing wav data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV parses WAV bytes produced by EncodeWAV back into PCM samples,
// returning the samples, sample rate and channel count.
func DecodeWAV(data []byte) ([]int16, int, int, error) {
	if len(data) < WAVHeaderSize {
		return nil, 0, 0, fmt.Errorf("wav data too short: %d bytes", len(data))
	}

	r := bytes.NewReader(data)
	var header WAVHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("reading wav header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	if header.AudioFormat != 1 {
		return nil, 0, 0, fmt.Errorf("unsupported audio format %d, want PCM", header.AudioFormat)
	}
	if header.BitsPerSample != BitsPerSample {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d", header.BitsPerSample)
	}
	if string(header.Subchunk2ID[:]) != "data" {
		return nil, 0, 0, fmt.Errorf("missing data chunk")
	}

	samples := make([]int16, header.Subchunk2Size/uint32(bytesPerSamp))
	if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
		return nil, 0, 0, fmt.Errorf("reading wav samples: %w", err)
	}
	return samples, int(header.SampleRate), int(header.NumChannels), nil
}

// WriteWAV converts float samples in [-1, 1] to 16-bit PCM and writes them to
// path as a canonical WAV file. An existing file at path is overwritten.
func WriteWAV(path string, samples []float32, channels, sampleRate int) error {
	data, err := EncodeWAV(Frame(samples), sampleRate, channels)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// TimestampedPath builds "<dir>/<name>_<UTC stamp>.wav". The stamp carries
// millisecond precision so rapid consecutive recordings never collide.
func TimestampedPath(dir, name string) string {
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	return filepath.Join(dir, fmt.Sprintf("%s_%s.wav", name, stamp))
}
