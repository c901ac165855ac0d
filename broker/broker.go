// Package broker runs an embedded MQTT broker that gateways can publish to
// directly instead of going through a public server.
package broker

import (
	"fmt"
	"io"
	"log"
	"log/slog"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/cyberorg/sparagliding-meshmap/config"
)

// Broker wraps a mochi MQTT server with a single TCP listener.
type Broker struct {
	server  *mqtt.Server
	address string
}

// New creates a broker that accepts every client. It does not listen until
// Start is called.
func New(cfg config.BrokerConfig) (*Broker, error) {
	server := mqtt.New(&mqtt.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add allow hook: %w", err)
	}
	tcp := listeners.NewTCP(listeners.Config{ID: "meshmap-tcp", Address: cfg.Address})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("add listener %s: %w", cfg.Address, err)
	}
	return &Broker{server: server, address: cfg.Address}, nil
}

// Start serves in the background.
func (b *Broker) Start() {
	go func() {
		if err := b.server.Serve(); err != nil {
			log.Printf("broker: serve: %v", err)
		}
	}()
	log.Printf("broker: listening on %s", b.address)
}

// Publish injects a message as if a client had published it.
func (b *Broker) Publish(topic string, payload []byte) error {
	return b.server.Publish(topic, payload, false, 0)
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	return b.server.Clients.Len()
}

func (b *Broker) Close() error {
	return b.server.Close()
}
