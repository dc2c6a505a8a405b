package provider

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameScanner_WholeInput(t *testing.T) {
	s := NewFrameScanner()
	frames := s.Feed([]byte("event: message_start\ndata: {\"a\":1}\n\ndata: [DONE]\n\n"))
	require.Len(t, frames, 2)
	assert.Equal(t, "message_start", frames[0].Event)
	assert.Equal(t, `{"a":1}`, string(frames[0].Data))
	assert.Equal(t, "[DONE]", string(frames[1].Data))
}

func TestFrameScanner_StableUnderArbitraryByteSlicing(t *testing.T) {
	input := []byte("event: message_start\ndata: {\"a\":1}\n\n" +
		"data: {\"b\":2}\n\n" +
		"data: [DONE]\n\n")

	whole := NewFrameScanner().Feed(input)

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 50; trial++ {
		s := NewFrameScanner()
		var got []Frame
		i := 0
		for i < len(input) {
			n := 1 + rng.Intn(5)
			if i+n > len(input) {
				n = len(input) - i
			}
			got = append(got, s.Feed(input[i:i+n])...)
			i += n
		}
		require.Len(t, got, len(whole))
		for j := range whole {
			assert.Equal(t, whole[j].Event, got[j].Event)
			assert.Equal(t, string(whole[j].Data), string(got[j].Data))
		}
	}
}

func TestFrameScanner_IgnoresCommentLines(t *testing.T) {
	s := NewFrameScanner()
	frames := s.Feed([]byte(": heartbeat\ndata: {\"x\":true}\n\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, `{"x":true}`, string(frames[0].Data))
}
