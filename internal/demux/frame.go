package demux

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/slok/mobydemux/internal/model"
)

const (
	frameHeaderSize = 8
	// MaxFramePayload is the biggest payload a frame header can declare.
	MaxFramePayload = math.MaxUint32
)

// Frame is a decoded chunk of a multiplexed stream.
type Frame struct {
	Channel model.Channel
	Payload []byte
}

// FrameReader decodes frames from a multiplexed byte stream. Frames can span any
// number of transport reads.
//
// Wire format (big endian):
//
//	[0]    channel id (0 stdin, 1 stdout, 2 stderr)
//	[1:4]  reserved
//	[4:8]  payload length N
//	[8:8+N] payload
type FrameReader struct {
	r      io.Reader
	header [frameHeaderSize]byte
	read   int64
}

// NewFrameReader returns a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// Next returns the next frame. io.EOF is only returned when the stream ends at a frame boundary,
// a stream ending in the middle of a frame returns model.ErrTruncatedFrame.
func (f *FrameReader) Next() (Frame, error) {
	n, err := io.ReadFull(f.r, f.header[:])
	f.read += int64(n)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return Frame{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return Frame{}, fmt.Errorf("header ended after %d of %d bytes at offset %d: %w", n, frameHeaderSize, f.read, model.ErrTruncatedFrame)
		default:
			return Frame{}, readError(err)
		}
	}

	// Reserved bytes (1-3) are not validated.
	channel := model.ChannelFromID(f.header[0])
	size := binary.BigEndian.Uint32(f.header[4:])

	payload := make([]byte, size)
	n, err = io.ReadFull(f.r, payload)
	f.read += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%s payload ended after %d of %d bytes at offset %d: %w", channel, n, size, f.read, model.ErrTruncatedFrame)
		}
		return Frame{}, readError(err)
	}

	return Frame{Channel: channel, Payload: payload}, nil
}

// Offset returns the number of bytes consumed from the underlying stream.
func (f *FrameReader) Offset() int64 { return f.read }

func readError(err error) error {
	if errors.Is(err, model.ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrTransport, err)
}

// DecodeAll decodes all the frames of a multiplexed stream, including unknown channel frames.
func DecodeAll(r io.Reader) ([]Frame, error) {
	fr := NewFrameReader(r)
	frames := []Frame{}
	for {
		f, err := fr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, err
		}
		frames = append(frames, f)
	}
}

// WriteFrame encodes a frame into w.
func WriteFrame(w io.Writer, f Frame) error {
	id, err := f.Channel.ID()
	if err != nil {
		return err
	}
	if uint64(len(f.Payload)) > MaxFramePayload {
		return fmt.Errorf("payload of %d bytes exceeds frame limit: %w", len(f.Payload), model.ErrNotValid)
	}

	buf := make([]byte, frameHeaderSize+len(f.Payload))
	buf[0] = id
	binary.BigEndian.PutUint32(buf[4:frameHeaderSize], uint32(len(f.Payload)))
	copy(buf[frameHeaderSize:], f.Payload)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	return nil
}

type frameWriter struct {
	w       io.Writer
	channel model.Channel
}

// NewFrameWriter returns a writer that frames every write as a single channel frame.
func NewFrameWriter(w io.Writer, channel model.Channel) io.Writer {
	return frameWriter{w: w, channel: channel}
}

func (f frameWriter) Write(p []byte) (int, error) {
	if err := WriteFrame(f.w, Frame{Channel: f.channel, Payload: p}); err != nil {
		return 0, err
	}
	return len(p), nil
}
