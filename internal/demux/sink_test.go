package demux_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/slok/mobydemux/internal/demux"
)

func TestLineSink(t *testing.T) {
	tests := map[string]struct {
		writes   []string
		expLines []string
	}{
		"Complete lines should be emitted.": {
			writes:   []string{"a\nb\n"},
			expLines: []string{"a", "b"},
		},

		"Lines split across writes should be joined.": {
			writes:   []string{"hel", "lo\nwor", "ld\n"},
			expLines: []string{"hello", "world"},
		},

		"Pending data should be emitted on flush.": {
			writes:   []string{"a\nno-break"},
			expLines: []string{"a", "no-break"},
		},

		"Empty lines should be emitted.": {
			writes:   []string{"\n\n"},
			expLines: []string{"", ""},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			gotLines := []string{}
			sink := demux.NewLineSink(func(line string) error {
				gotLines = append(gotLines, line)
				return nil
			})

			for _, w := range test.writes {
				n, err := sink.Write([]byte(w))
				require.NoError(err)
				assert.Equal(len(w), n)
			}
			require.NoError(sink.Flush())

			assert.Equal(test.expLines, gotLines)
		})
	}
}

func TestLineSinkError(t *testing.T) {
	errTest := errors.New("whatever")
	sink := demux.NewLineSink(func(line string) error { return errTest })

	_, err := sink.Write([]byte("a\n"))
	assert.ErrorIs(t, err, errTest)
}

func TestTextSink(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var b bytes.Buffer
	sink := demux.NewTextSink(&b, charmap.ISO8859_1)

	// "café" in latin1.
	_, err := sink.Write([]byte{'c', 'a', 'f', 0xe9})
	require.NoError(err)
	require.NoError(sink.Flush())

	assert.Equal("café", b.String())
}

func TestSinkFunc(t *testing.T) {
	assert := assert.New(t)

	var got []byte
	sink := demux.SinkFunc(func(p []byte) error {
		got = append(got, p...)
		return nil
	})

	n, err := sink.Write([]byte("abc"))
	assert.NoError(err)
	assert.Equal(3, n)
	assert.Equal("abc", string(got))

	errTest := errors.New("whatever")
	n, err = demux.SinkFunc(func(p []byte) error { return errTest }).Write([]byte("abc"))
	assert.ErrorIs(err, errTest)
	assert.Zero(n)
}
