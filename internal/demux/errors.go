package demux

import "fmt"

// Names used on errors for the session channels.
const (
	channelNameStdin  = "stdin"
	channelNameStdout = "stdout"
	channelNameStderr = "stderr"
	// The read side of a multiplexed socket carries all the output channels.
	channelNameOutput = "output"
)

// ChannelError is an error attributed to a single channel of a session.
type ChannelError struct {
	// Channel is the name of the failing channel (stdin, stdout, stderr or output).
	Channel string
	Err     error
}

func (c *ChannelError) Error() string { return fmt.Sprintf("%s channel: %s", c.Channel, c.Err) }
func (c *ChannelError) Unwrap() error { return c.Err }
