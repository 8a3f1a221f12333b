package moby

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/model"
)

const wsHandshakeTimeout = 30 * time.Second

// AttachWebsocket attaches a single channel of a running container using the websocket
// attach endpoint. The returned socket is raw, stdout and stderr sockets are read only.
func (c *Client) AttachWebsocket(ctx context.Context, containerID string, channel model.Channel) (*demux.Socket, error) {
	if containerID == "" {
		return nil, fmt.Errorf("container id is required: %w", model.ErrNotValid)
	}

	dir := demux.Unidirectional
	switch channel {
	case model.ChannelStdin:
		dir = demux.Bidirectional
	case model.ChannelStdout, model.ChannelStderr:
	default:
		return nil, fmt.Errorf("unknown channel %s: %w", channel, model.ErrNotValid)
	}

	u := c.websocketURL(containerID, channel)
	dialer := websocket.Dialer{
		ReadBufferSize:   32 * 1024,
		WriteBufferSize:  32 * 1024,
		HandshakeTimeout: wsHandshakeTimeout,
		// The daemon transport (unix socket, TCP, TLS) is handled by the Docker client.
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.client.Dialer()(ctx)
		},
	}

	c.logger.Debugf("Attaching %s websocket: %s", channel, u)
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, fmt.Errorf("could not attach %s websocket to container %s: %w: %w", channel, containerID, model.ErrNotFound, err)
		}
		return nil, fmt.Errorf("could not attach %s websocket to container %s: %w", channel, containerID, err)
	}

	return demux.ClassifyDirected(demux.ContentTypeRaw, newWSConn(conn), dir)
}

// WebsocketOptions select the channels attached with websockets.
type WebsocketOptions struct {
	Stdin  bool
	Stdout bool
	Stderr bool
}

// AttachWebsocketSplit attaches every selected channel with its own websocket.
func (c *Client) AttachWebsocketSplit(ctx context.Context, containerID string, opts WebsocketOptions) (demux.SplitSockets, error) {
	socks := demux.SplitSockets{}
	closeAll := func() {
		for _, s := range []*demux.Socket{socks.Stdin, socks.Stdout, socks.Stderr} {
			if s != nil {
				_ = s.Close()
			}
		}
	}

	attach := []struct {
		enabled bool
		channel model.Channel
		sock    **demux.Socket
	}{
		{enabled: opts.Stdin, channel: model.ChannelStdin, sock: &socks.Stdin},
		{enabled: opts.Stdout, channel: model.ChannelStdout, sock: &socks.Stdout},
		{enabled: opts.Stderr, channel: model.ChannelStderr, sock: &socks.Stderr},
	}
	for _, a := range attach {
		if !a.enabled {
			continue
		}

		sock, err := c.AttachWebsocket(ctx, containerID, a.channel)
		if err != nil {
			closeAll()
			return demux.SplitSockets{}, err
		}
		*a.sock = sock
	}

	return socks, nil
}

func (c *Client) websocketURL(containerID string, channel model.Channel) string {
	path := "/containers/" + url.PathEscape(containerID) + "/attach/ws"
	if v := c.client.ClientVersion(); v != "" {
		path = "/v" + strings.TrimPrefix(v, "v") + path
	}

	q := url.Values{}
	q.Set("stream", "1")
	q.Set(channel.String(), "1")

	u := url.URL{
		Scheme:   "ws",
		Host:     wsHost(c.client.DaemonHost()),
		Path:     path,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// wsHost returns the HTTP host for a daemon address, socket based daemons don't have one.
func wsHost(daemonHost string) string {
	u, err := url.Parse(daemonHost)
	if err != nil || u.Scheme == "unix" || u.Scheme == "npipe" || u.Host == "" {
		return "docker"
	}
	return u.Host
}

// wsConn adapts a websocket into a byte stream, message boundaries are not kept.
type wsConn struct {
	conn *websocket.Conn

	rmu sync.Mutex
	r   io.Reader

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (w *wsConn) Read(p []byte) (int, error) {
	w.rmu.Lock()
	defer w.rmu.Unlock()

	for {
		if w.r == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return 0, io.EOF
				}
				return 0, err
			}
			w.r = r
		}

		n, err := w.r.Read(p)
		if errors.Is(err, io.EOF) {
			w.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	w.wmu.Lock()
	defer w.wmu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CloseWrite tells the daemon no more input will be sent.
func (w *wsConn) CloseWrite() error {
	w.wmu.Lock()
	defer w.wmu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (w *wsConn) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
