package escalation

import (
	"encoding/binary"
	"io"
	"math"
	"time"
)

const DefaultSampleRate = 8000

// Tone is the audible half of an escalation: a fixed-length square wave.
type Tone struct {
	Frequency float64
	Duration  time.Duration
}

var DefaultTone = Tone{Frequency: 800, Duration: 800 * time.Millisecond}

// Samples renders the tone as unsigned 8-bit mono PCM.
func (t Tone) Samples(sampleRate int) []byte {
	n := int(t.Duration.Seconds() * float64(sampleRate))
	if n <= 0 || t.Frequency <= 0 {
		return nil
	}

	out := make([]byte, n)
	period := float64(sampleRate) / t.Frequency
	for i := range out {
		phase := math.Mod(float64(i), period) / period
		if phase < 0.5 {
			out[i] = 0xC0
		} else {
			out[i] = 0x40
		}
	}
	return out
}

// WriteWAV writes the tone as a RIFF/WAVE file.
func (t Tone) WriteWAV(w io.Writer, sampleRate int) error {
	data := t.Samples(sampleRate)

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(data)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate),
		BlockAlign:    1,
		BitsPerSample: 8,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(data)),
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}
