package demux_test

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
)

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		contentType string
		expKind     demux.Kind
		expErr      error
	}{
		"Raw stream content type should be classified as raw.": {
			contentType: "application/vnd.docker.raw-stream",
			expKind:     demux.KindRaw,
		},

		"Multiplexed stream content type should be classified as multiplexed.": {
			contentType: "application/vnd.docker.multiplexed-stream",
			expKind:     demux.KindMultiplexed,
		},

		"Content type parameters should be ignored.": {
			contentType: "application/vnd.docker.multiplexed-stream; charset=utf-8",
			expKind:     demux.KindMultiplexed,
		},

		"Missing content type should fail.": {
			contentType: "",
			expErr:      model.ErrClassification,
		},

		"Unknown content type should fail.": {
			contentType: "application/json",
			expErr:      model.ErrClassification,
		},

		"Malformed content type should fail.": {
			contentType: ";;;",
			expErr:      model.ErrClassification,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			sock, err := demux.Classify(test.contentType, newTestConn(nil))

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				assert.Nil(sock)
			} else if assert.NoError(err) {
				assert.Equal(test.expKind, sock.Kind())
				assert.Equal(demux.Bidirectional, sock.Direction())
			}
		})
	}
}

func TestClassifyHeader(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	h := http.Header{}
	h.Set("Content-Type", demux.ContentTypeRaw)

	sock, err := demux.ClassifyHeader(h, newTestConn(nil))
	require.NoError(err)
	assert.Equal(demux.KindRaw, sock.Kind())
}

func TestClassifyMissingConn(t *testing.T) {
	_, err := demux.Classify(demux.ContentTypeRaw, nil)
	assert.ErrorIs(t, err, model.ErrNotValid)
}

func TestSocketCloseOnce(t *testing.T) {
	assert := assert.New(t)

	conn := newTestConn(nil)
	sock := newSocket(t, demux.ContentTypeRaw, conn)

	assert.False(sock.Closed())
	assert.NoError(sock.Close())
	assert.NoError(sock.Close())
	assert.True(sock.Closed())
	assert.Equal(1, conn.Closes())
}

func TestSocketCloseWriteOnce(t *testing.T) {
	assert := assert.New(t)

	conn := newTestConn(nil)
	sock := newSocket(t, demux.ContentTypeRaw, conn)

	assert.NoError(sock.CloseWrite())
	assert.NoError(sock.CloseWrite())
	assert.Equal(1, conn.CloseWrites())
	assert.False(sock.Closed())
}

func TestSocketUnidirectionalWrite(t *testing.T) {
	assert := assert.New(t)

	conn := newTestConn(nil)
	sock, err := demux.ClassifyDirected(demux.ContentTypeRaw, conn, demux.Unidirectional)
	require.NoError(t, err)

	_, err = sock.Write([]byte("x"))
	assert.ErrorIs(err, model.ErrNotValid)
	assert.Empty(conn.Written())
}

func TestSocketReadAfterClose(t *testing.T) {
	assert := assert.New(t)

	sock, _, _ := newPipeSocket(t, demux.ContentTypeRaw)
	require.NoError(t, sock.Close())

	_, err := sock.Read(make([]byte, 1))
	assert.ErrorIs(err, model.ErrCancelled)
}

func TestBufferedConn(t *testing.T) {
	assert := assert.New(t)

	// The buffered reader already consumed part of the stream.
	conn := newTestConn([]byte("world"))
	br := bufio.NewReader(io.MultiReader(bytes.NewReader([]byte("hello ")), conn))
	_, err := br.Peek(3)
	require.NoError(t, err)

	bc := demux.NewBufferedConn(br, conn)
	got, err := io.ReadAll(bc)
	assert.NoError(err)
	assert.Equal("hello world", string(got))

	_, err = bc.Write([]byte("in"))
	assert.NoError(err)
	assert.Equal("in", conn.Written())

	sock := newSocket(t, demux.ContentTypeRaw, bc)
	assert.NoError(sock.CloseWrite())
	assert.Equal(1, conn.CloseWrites())
	assert.NoError(sock.Close())
	assert.Equal(1, conn.Closes())
}
