package event

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/artiflow/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultSocketIOEvent is the socket.io event name run events are emitted under.
const DefaultSocketIOEvent = "artiflow:event"

// SocketIOOptions configures a SocketIORecorder.
type SocketIOOptions struct {
	Namespace          string
	EventName          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// SocketIORecorder streams events to a socket.io server, for example a live
// pipeline dashboard.
type SocketIORecorder struct {
	io        *socket.Socket
	eventName string
}

// DialSocketIO connects to rawURL and returns a recorder once the connection
// is established.
func DialSocketIO(ctx context.Context, rawURL string, opts SocketIOOptions) (*SocketIORecorder, error) {
	logger := ctxlog.FromContext(ctx).With("recorder", "socketio", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}
	if opts.EventName == "" {
		opts.EventName = DefaultSocketIOEvent
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}

	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("Connected to event stream.", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		var err error = fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIORecorder{io: io, eventName: opts.EventName}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection: %w", ctx.Err())
	case <-time.After(opts.ConnectTimeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", opts.ConnectTimeout)
	}
}

// Record implements Recorder.
func (r *SocketIORecorder) Record(_ context.Context, e Event) {
	r.io.Emit(r.eventName, e.Payload())
}

// Close disconnects from the server.
func (r *SocketIORecorder) Close() error {
	r.io.Disconnect()
	return nil
}
