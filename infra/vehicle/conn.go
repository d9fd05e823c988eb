package vehicle

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/go-electrify/dockd/core/model"
	"github.com/go-electrify/dockd/infra/logger"
)

// envelope is the JSON frame exchanged with the vehicle client.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Conn wraps one vehicle WebSocket connection. Writes are serialized so a
// terminal notification always reaches the wire before Close tears the
// socket down.
type Conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration
	log          logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration, log logger.Logger) *Conn {
	return &Conn{
		id:           ws.RemoteAddr().String(),
		ws:           ws,
		writeTimeout: writeTimeout,
		log:          log,
		closed:       make(chan struct{}),
	}
}

// ID identifies the connection in logs.
func (c *Conn) ID() string { return c.id }

// Send delivers one event frame to the vehicle.
func (c *Conn) Send(event string, payload any) error {
	select {
	case <-c.closed:
		return fmt.Errorf("connection closed")
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(outbound{Event: event, Data: payload})
}

// Close shuts the socket down. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// readLoop decodes inbound frames until the socket closes, forwarding
// car_configure messages to the dock. Unknown events are logged and dropped.
func (c *Conn) readLoop(dock Dock, readLimit int64) {
	c.ws.SetReadLimit(readLimit)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.log.Infof("vehicle %s read closed: %v", c.id, err)
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warnf("vehicle %s sent malformed frame: %v", c.id, err)
			continue
		}
		switch env.Event {
		case model.VehicleEventCarConfigure:
			var cfg model.CarConfig
			if err := json.Unmarshal(env.Data, &cfg); err != nil {
				c.log.Warnf("vehicle %s sent malformed car_configure: %v", c.id, err)
				continue
			}
			dock.ConfigureVehicle(cfg)
		default:
			c.log.Debugf("ignoring vehicle event %q", env.Event)
		}
	}
}
