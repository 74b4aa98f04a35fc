package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func constantPCM(sample int16, n int) []byte {
	out := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(sample))
	}
	return out
}

func TestLoudness(t *testing.T) {
	require.Zero(t, Loudness(nil))
	require.Zero(t, Loudness([]byte{1}))
	require.Zero(t, Loudness(constantPCM(0, 100)))
	require.InDelta(t, 0.5, Loudness(constantPCM(-16384, 100)), 0.001)
	require.InDelta(t, 1.0, Loudness(constantPCM(-32768, 10)), 0.001)
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := constantPCM(100, 8)
	wav := EncodeWAV(pcm, SampleRate, 1)

	require.Len(t, wav, 44+len(pcm))
	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	require.Equal(t, uint32(SampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	require.Equal(t, uint32(SampleRate*2), binary.LittleEndian.Uint32(wav[28:32]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	require.True(t, bytes.Equal(pcm, wav[44:]))
}

func TestWriteWAVDefaultsChannels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWAV(&buf, nil, 8000, 0))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(buf.Bytes()[22:24]))
}
