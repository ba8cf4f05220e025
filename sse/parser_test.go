package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserFeed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
		rest   []string
	}{
		{
			name:   "single complete frame",
			chunks: []string{"data: {\"a\":1}\n\n"},
			want:   []string{`{"a":1}`},
		},
		{
			name:   "multiple frames in one chunk",
			chunks: []string{"data: one\n\ndata: two\n\n"},
			want:   []string{"one", "two"},
		},
		{
			name:   "frame split mid line",
			chunks: []string{"data: {\"te", "xt\":\"hi\"}\n", "\n"},
			want:   []string{`{"text":"hi"}`},
		},
		{
			name:   "terminator split across chunks",
			chunks: []string{"data: one\n", "\ndata: two\n\n"},
			want:   []string{"one", "two"},
		},
		{
			name:   "crlf line endings split between cr and lf",
			chunks: []string{"data: one\r", "\n\r\ndata: two\r\n\r\n"},
			want:   []string{"one", "two"},
		},
		{
			name:   "cr held at the end of every chunk",
			chunks: []string{"data: one\r", "\n\r", "\ndata: two\r", "\n"},
			want:   []string{"one"},
			rest:   []string{"two"},
		},
		{
			name:   "trailing cr at end of stream",
			chunks: []string{"data: one\r"},
			rest:   []string{"one"},
		},
		{
			name:   "lone cr is kept",
			chunks: []string{"data: a\r", "b\n\n"},
			want:   []string{"a\rb"},
		},
		{
			name:   "multiple data lines are concatenated",
			chunks: []string{"data: {\"a\":\ndata: 1}\n\n"},
			want:   []string{`{"a":1}`},
		},
		{
			name:   "data without space and other fields",
			chunks: []string{": keepalive\n\nevent: message\nid: 7\ndata:{}\nretry: 100\n\n"},
			want:   []string{"{}"},
		},
		{
			name:   "unterminated frame stays buffered",
			chunks: []string{"data: one\n\ndata: two\n"},
			want:   []string{"one"},
			rest:   []string{"two"},
		},
		{
			name:   "empty data is skipped",
			chunks: []string{"data:\n\ndata: \n\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			var got []string
			for _, c := range tt.chunks {
				got = append(got, p.Feed(c)...)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.rest, p.Flush())
			assert.Empty(t, p.Flush())
		})
	}
}

func TestParserLargeFrameInSmallChunks(t *testing.T) {
	text := strings.Repeat("x", 1<<20)
	frame := "data: " + text + "\r\n\r\n"

	p := NewParser()
	var got []string
	for i := 0; i < len(frame); i += 7 {
		got = append(got, p.Feed(frame[i:min(i+7, len(frame))])...)
	}
	require.Len(t, got, 1)
	assert.Equal(t, text, got[0])
	assert.Empty(t, p.Flush())
}

func TestParserIsolation(t *testing.T) {
	a := NewParser()
	b := NewParser()

	assert.Empty(t, a.Feed("data: from-a"))
	assert.Equal(t, []string{"from-b"}, b.Feed("data: from-b\n\n"))
	assert.Equal(t, []string{"from-a"}, a.Feed("\n\n"))
}

func TestRead(t *testing.T) {
	stream := "data: one\n\n: ping\n\ndata: two\n\ndata: three"

	t.Run("delivers all payloads and flushes at eof", func(t *testing.T) {
		var got []string
		err := Read(context.Background(), iotest.OneByteReader(strings.NewReader(stream)), func(data string) error {
			got = append(got, data)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two", "three"}, got)
	})

	t.Run("callback error stops reading", func(t *testing.T) {
		stop := errors.New("stop")
		var got []string
		err := Read(context.Background(), strings.NewReader(stream), func(data string) error {
			got = append(got, data)
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, []string{"one"}, got)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Read(ctx, strings.NewReader(stream), func(string) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("reader failure is wrapped", func(t *testing.T) {
		boom := errors.New("connection reset")
		r := io.MultiReader(strings.NewReader("data: one\n\n"), iotest.ErrReader(boom))
		var got []string
		err := Read(context.Background(), r, func(data string) error {
			got = append(got, data)
			return nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failed to read event stream")
		assert.Equal(t, []string{"one"}, got)
	})
}
