// Package probe is a manual check against a running signaling server: it
// connects once, says hello and prints whatever the server sends back.
package probe

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/makinje16/AirSignals/internal/shared/logger"
)

const (
	// DefaultEndpoint is room 555 joined as host "Anwar" on a local server.
	DefaultEndpoint = "ws://localhost:8080/ws/555/Anwar"
	// Greeting is sent once, right after the connection opens.
	Greeting = "Hello this is Malcolm!"
	// MessageLabel prefixes every line printed for an inbound frame.
	MessageLabel = "Message from server "
)

type Option func(*Probe)

// WithEndpoint overrides the URL dialed by Run.
func WithEndpoint(url string) Option {
	return func(p *Probe) { p.endpoint = url }
}

// WithOutput overrides where inbound messages are printed.
func WithOutput(w io.Writer) Option {
	return func(p *Probe) { p.out = w }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(p *Probe) { p.dialer = d }
}

// Probe owns a single connection for its whole life. It never reconnects.
type Probe struct {
	endpoint string
	out      io.Writer
	dialer   *websocket.Dialer
	log      zerolog.Logger
}

func New(opts ...Option) *Probe {
	p := &Probe{
		endpoint: DefaultEndpoint,
		out:      os.Stdout,
		dialer:   websocket.DefaultDialer,
		log:      logger.WithComponent("probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Endpoint returns the URL Run dials.
func (p *Probe) Endpoint() string {
	return p.endpoint
}

// Run connects, sends the greeting and prints inbound text frames until the
// peer closes the connection or ctx is done. A clean close from either side
// returns nil.
func (p *Probe) Run(ctx context.Context) error {
	conn, _, err := p.dialer.DialContext(ctx, p.endpoint, nil)
	if err != nil {
		if ctx.Err() != nil {
			p.log.Debug().Msg("Probe cancelled before the connection opened.")
			return nil
		}
		return fmt.Errorf("probe dial %s failed: %w", p.endpoint, err)
	}
	defer conn.Close()
	p.log.Debug().Str("endpoint", p.endpoint).Msg("Connection opened.")

	if err := p.onOpen(conn); err != nil {
		return err
	}

	// 取消 ctx 时关闭连接，让阻塞中的 ReadMessage 返回
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				p.log.Debug().Msg("Probe cancelled.")
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.log.Debug().Err(err).Msg("Server closed the connection.")
				return nil
			}
			return fmt.Errorf("probe read failed: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}
		p.onMessage(data)
	}
}

func (p *Probe) onOpen(conn *websocket.Conn) error {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(Greeting)); err != nil {
		return fmt.Errorf("probe greeting failed: %w", err)
	}
	return nil
}

func (p *Probe) onMessage(data []byte) {
	fmt.Fprintln(p.out, MessageLabel, string(data))
}
