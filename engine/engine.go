// Package engine wires the ingest pipeline, relays and background loops
// together and exposes their events.
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/config"
	"github.com/cyberorg/sparagliding-meshmap/ingest"
	"github.com/cyberorg/sparagliding-meshmap/meshcrypt"
	"github.com/cyberorg/sparagliding-meshmap/messaging"
	"github.com/cyberorg/sparagliding-meshmap/nodestate"
	"github.com/cyberorg/sparagliding-meshmap/relay"
	"github.com/cyberorg/sparagliding-meshmap/store"
)

type LogFunc func(format string, args ...any)

// Transport is the subscription side of the messaging client.
type Transport interface {
	Subscribe(topics []string, handler messaging.MessageHandler) error
	IsConnected() bool
}

type Config struct {
	AppConfig *config.Config
	DB        *store.DB
	NodeState *nodestate.Manager
	Transport Transport
	LogFunc   LogFunc
}

type Engine struct {
	cfg       *config.Config
	db        *store.DB
	nodeState *nodestate.Manager
	transport Transport
	keys      []meshcrypt.Key
	pool      *ingest.Pool
	drainer   *relay.Drainer
	Events    *EventBus
	logFn     LogFunc
	now       func() time.Time

	healthInterval time.Duration
	msgConnected   bool

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New validates the decryption keys and builds an engine. Nothing runs
// until Start.
func New(c Config) (*Engine, error) {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	keys, err := meshcrypt.ParseKeys(c.AppConfig.Decryption.Keys)
	if err != nil {
		return nil, fmt.Errorf("decryption keys: %w", err)
	}
	return &Engine{
		cfg:            c.AppConfig,
		db:             c.DB,
		nodeState:      c.NodeState,
		transport:      c.Transport,
		keys:           keys,
		Events:         NewEventBus(),
		logFn:          logFn,
		now:            time.Now,
		healthInterval: 30 * time.Second,
		stopChan:       make(chan struct{}),
	}, nil
}

func (e *Engine) Start() error {
	queue := relay.NewQueue(e.db, e.cfg.Relay)
	handler := messaging.NewMeshHandler(e.db, e.cfg.Ingest.DedupWindow, queue, queue, &meshEmitter{bus: e.Events})

	var status ingest.StatusHandler
	if e.nodeState != nil {
		status = &statusRecorder{states: e.nodeState, bus: e.Events}
	}
	ingestor := ingest.NewIngestor(ingest.NewRouter(handler), status, messaging.EnvelopeAudit{DB: e.db}, e.keys, e.logFn)

	ic := e.cfg.Ingest
	e.pool = ingest.NewPool(ingestor.HandleMessage, ic.Workers, ic.QueueSize, ic.Timeout, e.logFn)
	e.pool.Start()

	e.drainer = relay.NewDrainer(e.db, e.deliverers(), e.cfg.Relay.DrainInterval, e.cfg.Relay.MaxRetries)
	e.drainer.Start()

	if e.transport != nil {
		if err := e.transport.Subscribe(e.cfg.Messaging.Topics, e.Submit); err != nil {
			e.Stop()
			return fmt.Errorf("subscribe %v: %w", e.cfg.Messaging.Topics, err)
		}
	}

	// Emit initial connection status
	e.checkConnectionStatus()

	e.wg.Add(2)
	go e.connectionHealthLoop()
	go e.retentionLoop()

	e.logFn("engine: started with %d decryption keys", len(e.keys))
	return nil
}

// deliverers returns an outbox deliverer for every configured relay.
func (e *Engine) deliverers() map[string]relay.Deliverer {
	const timeout = 15 * time.Second
	d := make(map[string]relay.Deliverer)
	if e.cfg.Relay.Telegram.Enabled() {
		d[relay.KindTelegram] = relay.NewTelegramClient(e.cfg.Relay.Telegram, timeout)
		e.logFn("engine: telegram relay enabled")
	}
	if e.cfg.Relay.FlyXC.Enabled() {
		d[relay.KindFlyXC] = relay.NewFlyXCClient(e.cfg.Relay.FlyXC, timeout)
		e.logFn("engine: flyxc relay enabled")
	}
	return d
}

// Stop halts the background loops, then drains queued messages.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
	if e.pool != nil {
		e.pool.Stop()
	}
	if e.drainer != nil {
		e.drainer.Stop()
	}
	e.logFn("engine: stopped")
}

// Submit hands one transport message to the ingest pool. It never blocks.
func (e *Engine) Submit(topic string, payload []byte) {
	e.pool.Submit(topic, payload)
}

// Accessors
func (e *Engine) DB() *store.DB                 { return e.db }
func (e *Engine) AppConfig() *config.Config     { return e.cfg }
func (e *Engine) NodeState() *nodestate.Manager { return e.nodeState }
func (e *Engine) Pool() *ingest.Pool            { return e.pool }

// MessagingConnected reports the last observed transport state.
func (e *Engine) MessagingConnected() bool {
	return e.transport != nil && e.transport.IsConnected()
}

func (e *Engine) checkConnectionStatus() {
	connected := e.MessagingConnected()
	if connected == e.msgConnected {
		return
	}
	e.msgConnected = connected
	if connected {
		e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Connected: true, Detail: "messaging connected"}})
	} else {
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
	}
}

func (e *Engine) connectionHealthLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
