package model

import "fmt"

// Channel identifies one of the standard streams of a container process.
type Channel int

const (
	// ChannelStdin is the process input stream.
	ChannelStdin Channel = 0
	// ChannelStdout is the process output stream.
	ChannelStdout Channel = 1
	// ChannelStderr is the process error stream.
	ChannelStderr Channel = 2
	// ChannelUnknown is any channel id not defined by the protocol.
	ChannelUnknown Channel = -1
)

// ChannelFromID maps a multiplexed frame channel id into a Channel.
func ChannelFromID(id byte) Channel {
	switch id {
	case 0:
		return ChannelStdin
	case 1:
		return ChannelStdout
	case 2:
		return ChannelStderr
	default:
		return ChannelUnknown
	}
}

// ID returns the wire channel id, unknown channels can't be encoded.
func (c Channel) ID() (byte, error) {
	switch c {
	case ChannelStdin, ChannelStdout, ChannelStderr:
		return byte(c), nil
	default:
		return 0, fmt.Errorf("channel %s has no wire id: %w", c, ErrNotValid)
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelStdin:
		return "stdin"
	case ChannelStdout:
		return "stdout"
	case ChannelStderr:
		return "stderr"
	default:
		return "unknown"
	}
}
