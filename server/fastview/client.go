package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = time.Second
	pingResolution = 200 * time.Millisecond
	// pongWait is how long the peer may stay silent, i.e. about four lost pings.
	pongWait = 4 * pingResolution
	// sockWait bounds how long a read or write waits its turn on the socket.
	sockWait = time.Second
)

var upgrader = websocket.Upgrader{}

var (
	errUpdatesClosed = errors.New("update stream closed")

	ErrPongDeadlineExceeded = errors.New("client disconnect, pong deadline exceeded")
	// ErrSockCongestion means a socket op waited too long behind another op of its kind.
	ErrSockCongestion = errors.New("sock op failed due to congestion")
)

// Client publishes a stream of updates to one browser over a websocket. Throttling is the
// producer's job; every update received is sent.
type Client[T any] struct {
	updates <-chan T
	sock    *websock
	ctx     context.Context
}

// NewClient upgrades the request to a websocket publishing items from updates.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client.
		return nil, fmt.Errorf("upgrade: %w", err)
	}

	return &Client[T]{
		updates: updates,
		sock:    newWebsock(ws),
		ctx:     r.Context(),
	}, nil
}

// Sync runs the client until the peer goes away, the request context ends, or the update
// stream closes. A normal disconnect returns nil. The socket is closed on return.
func (cli *Client[T]) Sync() error {
	defer cli.sock.close()

	group, ctx := errgroup.WithContext(cli.ctx)
	group.Go(func() error {
		return cli.readMessages(ctx)
	})
	group.Go(func() error {
		return cli.pingPong(ctx)
	})
	group.Go(func() error {
		return cli.publish(ctx)
	})
	group.Go(func() error {
		<-ctx.Done()
		// Unblocks a pending ReadMessage.
		return cli.sock.ws.SetReadDeadline(time.Now())
	})

	err := group.Wait()
	if err == nil || isClosure(err) || errors.Is(err, errUpdatesClosed) {
		return nil
	}
	return err
}

// readMessages discards client messages; reading is still required so that control frames
// (pongs, close) are processed. Read errors are permanent.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for ctx.Err() == nil {
		err := cli.sock.read(ctx, func(ws *websocket.Conn) error {
			_, _, err := ws.ReadMessage()
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// pingPong checks liveness; it relies on readMessages for the pong handler to fire.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pongs := make(chan struct{}, 1)
	cli.sock.ws.SetPongHandler(func(string) error {
		select {
		case pongs <- struct{}{}:
		default:
		}
		return nil
	})

	lastPong := time.Now()
	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pongs:
			lastPong = time.Now()
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			err := cli.sock.write(ctx, func(ws *websocket.Conn) error {
				return ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			})
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

// publish writes each update as it arrives.
func (cli *Client[T]) publish(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			if !ok {
				return errUpdatesClosed
			}
			err := cli.sock.write(ctx, func(ws *websocket.Conn) error {
				if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return err
				}
				return ws.WriteJSON(update)
			})
			if err != nil {
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
}

func isClosure(err error) bool {
	return websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// websock serializes socket access: gorilla allows one concurrent reader and one
// concurrent writer. The semaphores are single-slot channels so waits can be abandoned.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebsock(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

func (sock *websock) read(ctx context.Context, readFn func(*websocket.Conn) error) error {
	return acquire(ctx, sock.readSem, func() error { return readFn(sock.ws) })
}

func (sock *websock) write(ctx context.Context, writeFn func(*websocket.Conn) error) error {
	return acquire(ctx, sock.writeSem, func() error { return writeFn(sock.ws) })
}

func acquire(ctx context.Context, sem chan struct{}, fn func() error) error {
	select {
	case <-ctx.Done():
		return nil
	case sem <- struct{}{}:
		defer func() { <-sem }()
		return fn()
	case <-time.After(sockWait):
		return ErrSockCongestion
	}
}

// close sends a close frame and closes the connection. Callers must be done with the socket.
func (sock *websock) close() {
	sock.writeSem <- struct{}{}
	_ = sock.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = sock.ws.Close()
}
