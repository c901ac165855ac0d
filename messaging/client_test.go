package messaging

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/broker"
	"github.com/cyberorg/sparagliding-meshmap/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestMQTTRoundTripThroughEmbeddedBroker(t *testing.T) {
	port := freePort(t)
	b, err := broker.New(config.BrokerConfig{Enabled: true, Address: fmt.Sprintf("127.0.0.1:%d", port)})
	if err != nil {
		t.Fatalf("broker.New: %v", err)
	}
	b.Start()
	defer b.Close()

	c := NewClient(&config.MessagingConfig{
		Backend: "mqtt",
		MQTT:    config.MQTTConfig{Broker: "127.0.0.1", Port: port, ClientID: "meshmap-test", Username: "meshdev", Password: "large4cats"},
	})
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()
	if !c.IsConnected() {
		t.Fatal("client should be connected")
	}

	type msg struct {
		topic   string
		payload string
	}
	got := make(chan msg, 4)
	if err := c.Subscribe([]string{"msh/#"}, func(topic string, payload []byte) {
		got <- msg{topic, string(payload)}
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish("msh/EU_868/2/stat/!8d2abf01", []byte("online")); err != nil {
		t.Fatalf("broker Publish: %v", err)
	}
	if err := c.Publish("other/topic", []byte("ignored")); err != nil {
		t.Fatalf("client Publish: %v", err)
	}
	if err := c.Publish("msh/EU_868/2/e/LongFast/!8d2abf01", []byte{1, 2}); err != nil {
		t.Fatalf("client Publish: %v", err)
	}

	want := []msg{
		{"msh/EU_868/2/stat/!8d2abf01", "online"},
		{"msh/EU_868/2/e/LongFast/!8d2abf01", string([]byte{1, 2})},
	}
	seen := map[msg]bool{}
	timeout := time.After(5 * time.Second)
	for len(seen) < len(want) {
		select {
		case m := <-got:
			seen[m] = true
		case <-timeout:
			t.Fatalf("timed out, received %v", seen)
		}
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("missing %v", w)
		}
	}
	if b.Clients() == 0 {
		t.Error("broker should report the connected client")
	}
}

func TestSubscribeRequiresTopics(t *testing.T) {
	c := NewClient(&config.MessagingConfig{Backend: "mqtt"})
	if err := c.Subscribe(nil, func(string, []byte) {}); err == nil {
		t.Error("expected error for empty topic list")
	}
}

func TestUnknownBackend(t *testing.T) {
	c := NewClient(&config.MessagingConfig{Backend: "carrier-pigeon"})
	if err := c.Connect(); err == nil {
		t.Error("expected error for unknown backend")
	}
	if c.IsConnected() {
		t.Error("unknown backend should not report connected")
	}
}
