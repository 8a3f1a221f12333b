// Package lib provides a Go SDK to demultiplex the streams of container engine
// hijacked connections (attach, exec and run).
//
// The daemon streams come in two shapes, selected by the response content type:
//
//   - Raw (application/vnd.docker.raw-stream): TTY sessions, stdout and stderr
//     combined and unframed.
//   - Multiplexed (application/vnd.docker.multiplexed-stream): every chunk is
//     prefixed with an 8 byte header carrying its channel and length.
//
// # Quick Start
//
// Execute a command in a running container and get its output separated:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.Exec(ctx, "my-container", []string{"ls", "-la"}, &lib.ExecOpts{
//	    Stdout: os.Stdout,
//	    Stderr: os.Stderr,
//	})
//	fmt.Println(res.ExitCode)
//
// # Streams
//
// Sockets obtained by other means (e.g a custom HTTP client) can be classified and
// demuxed directly:
//
//	sock, err := lib.ClassifyHeader(resp.Header, conn)
//	res, err := client.DemuxToSeparateSinks(ctx, sock, os.Stdin, os.Stdout, os.Stderr)
//
// Captured multiplexed streams (e.g API dumps) can be decoded offline with
// [Client.Decode].
//
// # History
//
// When [Config].DBPath is set every session is recorded on a SQLite database and
// can be listed with [Client.History].
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Container, exec or session does not exist.
//   - [ErrNotValid]: Invalid input or operation (e.g separating a raw stream).
//   - [ErrClassification]: Unknown stream content type.
//   - [ErrTruncatedFrame]: Multiplexed stream ended in the middle of a frame.
//   - [ErrTransport]: The connection failed.
//   - [ErrSink], [ErrSource]: The local output or input failed.
//   - [ErrCancelled]: The context was cancelled.
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines, every call runs
// its own demux session.
package lib
