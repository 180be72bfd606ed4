package sse

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

const wellFormed = "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\n\n" +
	": keep-alive\n\n" +
	"event: message\ndata: {\"choices\":[{\"delta\":{\"content\":\"B\"}}]}\n\n" +
	"data: héllo wörld\n\n" +
	"data: [DONE]\n\n"

func feedAll(t *testing.T, chunks [][]byte) []Frame {
	t.Helper()
	var d Decoder
	var out []Frame
	for _, c := range chunks {
		out = append(out, d.Feed(c)...)
	}
	return out
}

func TestDecoder_SingleChunk(t *testing.T) {
	frames := feedAll(t, [][]byte{[]byte(wellFormed)})
	require.Len(t, frames, 5)
	require.Equal(t, []string{`{"choices":[{"delta":{"content":"A"}}]}`}, frames[0].Data)
	require.Empty(t, frames[1].Data, "comment frames carry no data")
	require.Equal(t, []string{`{"choices":[{"delta":{"content":"B"}}]}`}, frames[2].Data)
	require.Equal(t, []string{"héllo wörld"}, frames[3].Data)
	require.Equal(t, []string{"[DONE]"}, frames[4].Data)
}

func TestDecoder_ChunkBoundaryInvariance(t *testing.T) {
	want := feedAll(t, [][]byte{[]byte(wellFormed)})
	raw := []byte(wellFormed)

	// Every single split point, including ones inside multi-byte runes.
	for i := 0; i <= len(raw); i++ {
		got := feedAll(t, [][]byte{raw[:i], raw[i:]})
		require.Equal(t, want, got, "split at %d", i)
	}

	// Byte-at-a-time.
	var bytewise [][]byte
	for i := range raw {
		bytewise = append(bytewise, raw[i:i+1])
	}
	require.Equal(t, want, feedAll(t, bytewise))

	// Random chunkings.
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		var chunks [][]byte
		rest := raw
		for len(rest) > 0 {
			k := 1 + rng.Intn(len(rest))
			chunks = append(chunks, rest[:k])
			rest = rest[k:]
		}
		require.Equal(t, want, feedAll(t, chunks))
	}
}

func TestDecoder_CRLFFraming(t *testing.T) {
	crlfStream := strings.ReplaceAll(wellFormed, "\n", "\r\n")
	want := feedAll(t, [][]byte{[]byte(wellFormed)})

	raw := []byte(crlfStream)
	for i := 0; i <= len(raw); i++ {
		require.Equal(t, want, feedAll(t, [][]byte{raw[:i], raw[i:]}), "split at %d", i)
	}
}

func TestDecoder_KeepsPartialFrameBuffered(t *testing.T) {
	var d Decoder
	frames := d.Feed([]byte("data: one\n\ndata: tw"))
	require.Len(t, frames, 1)
	require.Equal(t, len("data: tw"), d.Buffered())

	frames = d.Feed([]byte("o\n\n"))
	require.Len(t, frames, 1)
	require.Equal(t, []string{"two"}, frames[0].Data)
	require.Zero(t, d.Buffered())
}

func TestDecoder_MultipleDataLinesInOneFrame(t *testing.T) {
	var d Decoder
	frames := d.Feed([]byte("id: 3\ndata: first\n  data:second  \nretry: 10\n\n"))
	require.Len(t, frames, 1)
	require.Equal(t, []string{"first", "second"}, frames[0].Data)
}

func TestDecoder_ResetDropsPartial(t *testing.T) {
	var d Decoder
	d.Feed([]byte("data: half"))
	d.Reset()
	require.Zero(t, d.Buffered())
	frames := d.Feed([]byte("data: whole\n\n"))
	require.Equal(t, []string{"whole"}, frames[0].Data)
}

func TestReader_DiscardsTrailingPartialFrame(t *testing.T) {
	r := NewReader(strings.NewReader("data: a\n\ndata: b\n\ndata: never-terminated"))

	var got []string
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, f.Data...)
	}
	require.Equal(t, []string{"a", "b"}, got)
	require.Zero(t, r.Buffered())

	_, err := r.Next()
	require.ErrorIs(t, err, io.EOF, "EOF is sticky")
}

func TestReader_OneByteReads(t *testing.T) {
	r := NewReader(iotest.OneByteReader(strings.NewReader(wellFormed)))
	var n int
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		n++
	}
	require.Equal(t, 5, n)
}

func TestReader_ReadErrorAfterDrainingFrames(t *testing.T) {
	boom := errors.New("connection reset")
	src := io.MultiReader(strings.NewReader("data: a\n\ndata: partial"), iotest.ErrReader(boom))
	r := NewReader(src)

	f, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, f.Data)

	_, err = r.Next()
	require.ErrorIs(t, err, boom)
}

func TestReader_DataErrTogether(t *testing.T) {
	// A reader returning the final bytes together with io.EOF.
	r := NewReader(iotest.DataErrReader(bytes.NewReader([]byte("data: x\n\n"))))
	f, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, f.Data)
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}
