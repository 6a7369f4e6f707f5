package audio

import (
	"bytes"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV parses WAV bytes into a float32 Buffer.
func DecodeWAV(data []byte) (Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Buffer{}, fmt.Errorf("%w: not a valid wav file", ErrInvalidAudio)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decode wav: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return Buffer{}, fmt.Errorf("%w: missing format", ErrInvalidAudio)
	}

	scale := float32(int(1) << (dec.BitDepth - 1))
	if dec.BitDepth == 0 {
		scale = 1 << 15
	}
	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float32(v) / scale
	}
	return Buffer{
		Samples:    samples,
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
	}, nil
}

// WriteWAVFile encodes the buffer as 16-bit PCM WAV at path.
func WriteWAVFile(path string, buf Buffer) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer file.Close()

	enc := wav.NewEncoder(file, buf.SampleRate, 16, buf.Channels, 1)
	if err := enc.Write(intBuffer(buf)); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// EncodeWAVBytes encodes the buffer as WAV bytes. The wav encoder needs a
// seekable writer, so this round-trips through a temp file.
func EncodeWAVBytes(buf Buffer) ([]byte, error) {
	file, err := os.CreateTemp("", "vaani_wav_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	name := file.Name()
	file.Close()
	defer os.Remove(name)

	if err := WriteWAVFile(name, buf); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return data, nil
}

func intBuffer(buf Buffer) *gaudio.IntBuffer {
	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}
	return &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: buf.Channels, SampleRate: buf.SampleRate},
		Data:   data,
	}
}
