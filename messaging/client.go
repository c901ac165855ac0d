// Package messaging connects to the transport gateways publish on and feeds
// every received message to the ingest pipeline.
package messaging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageHandler receives one transport message. It must not block for long.
type MessageHandler func(topic string, payload []byte)

const connectTimeout = 10 * time.Second

// Client is the unified messaging client (MQTT or Kafka).
type Client struct {
	mu       sync.RWMutex
	cfg      *config.MessagingConfig
	backend  string
	mqttConn mqtt.Client
	kafkaW   *kafkago.Writer
	kafkaR   *kafkago.Reader
	cancel   context.CancelFunc

	topics  []string
	handler MessageHandler
}

// NewClient creates a messaging client based on config.
func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{
		cfg:     cfg,
		backend: cfg.Backend,
	}
}

// Connect establishes the messaging connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.backend {
	case "mqtt":
		return c.connectMQTT()
	case "kafka":
		return c.connectKafka()
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.backend)
	}
}

// clientID suffixes the configured id so several instances can share the
// public broker without kicking each other off.
func (c *Client) clientID() string {
	return fmt.Sprintf("%s-%s", c.cfg.MQTT.ClientID, uuid.NewString()[:8])
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.clientID()).
		SetUsername(c.cfg.MQTT.Username).
		SetPassword(c.cfg.MQTT.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(c.onMQTTConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("messaging: mqtt connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	c.mqttConn = client
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("messaging: %s not reachable yet, retrying in background", broker)
		return nil
	}
	if err := token.Error(); err != nil {
		c.mqttConn = nil
		return fmt.Errorf("mqtt connect: %w", err)
	}
	log.Printf("messaging: connected to %s", broker)
	return nil
}

// onMQTTConnect restores subscriptions after a reconnect; the session is
// not persistent.
func (c *Client) onMQTTConnect(client mqtt.Client) {
	c.mu.RLock()
	topics, handler := c.topics, c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}
	if err := subscribeMQTT(client, topics, handler); err != nil {
		log.Printf("messaging: resubscribe: %v", err)
	}
}

func subscribeMQTT(client mqtt.Client, topics []string, handler MessageHandler) error {
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = 0
	}
	token := client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (c *Client) connectKafka() error {
	c.kafkaW = &kafkago.Writer{
		Addr:         kafkago.TCP(c.cfg.Kafka.Brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
	return nil
}

// Publish sends a message. On Kafka the MQTT topic travels as the message
// key and the first configured topic is the Kafka topic.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.backend {
	case "mqtt":
		if c.mqttConn == nil || !c.mqttConn.IsConnected() {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqttConn.Publish(topic, 0, false, payload)
		token.Wait()
		return token.Error()
	case "kafka":
		if c.kafkaW == nil {
			return fmt.Errorf("kafka writer not initialized")
		}
		if len(c.cfg.Topics) == 0 {
			return fmt.Errorf("no kafka topic configured")
		}
		return c.kafkaW.WriteMessages(context.Background(), kafkago.Message{
			Topic: c.cfg.Topics[0],
			Key:   []byte(topic),
			Value: payload,
		})
	default:
		return fmt.Errorf("unknown backend: %s", c.backend)
	}
}

// Subscribe registers handler for the given topic filters. MQTT
// subscriptions are restored on reconnect.
func (c *Client) Subscribe(topics []string, handler MessageHandler) error {
	if len(topics) == 0 {
		return fmt.Errorf("no topics to subscribe")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append([]string(nil), topics...)
	c.handler = handler

	switch c.backend {
	case "mqtt":
		if c.mqttConn == nil {
			return fmt.Errorf("mqtt not connected")
		}
		if !c.mqttConn.IsConnectionOpen() {
			// onMQTTConnect subscribes once the connection is up
			log.Printf("messaging: subscription to %v deferred until connected", topics)
			return nil
		}
		if err := subscribeMQTT(c.mqttConn, topics, handler); err != nil {
			return fmt.Errorf("mqtt subscribe: %w", err)
		}
		log.Printf("messaging: subscribed to %v", topics)
		return nil
	case "kafka":
		c.kafkaR = kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     c.cfg.Kafka.Brokers,
			GroupID:     c.cfg.Kafka.GroupID,
			GroupTopics: topics,
		})
		ctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		go readKafka(ctx, c.kafkaR, handler)
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", c.backend)
	}
}

func readKafka(ctx context.Context, r *kafkago.Reader, handler MessageHandler) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("messaging: kafka read: %v", err)
			}
			return
		}
		topic := msg.Topic
		if len(msg.Key) > 0 {
			topic = string(msg.Key)
		}
		handler(topic, msg.Value)
	}
}

// IsConnected returns whether the messaging client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.backend {
	case "mqtt":
		return c.mqttConn != nil && c.mqttConn.IsConnected()
	case "kafka":
		return c.kafkaW != nil
	default:
		return false
	}
}

// Close shuts down the messaging connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	if c.kafkaW != nil {
		c.kafkaW.Close()
		c.kafkaW = nil
	}
	if c.kafkaR != nil {
		c.kafkaR.Close()
		c.kafkaR = nil
	}
}
