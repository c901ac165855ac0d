// Package ingest turns raw transport messages into routed mesh payloads.
//
// A message goes through topic classification, envelope decode, trial
// decryption and a raw audit write before its payload is dispatched by port
// number to a PacketHandler.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyberorg/sparagliding-meshmap/meshcrypt"
	"github.com/cyberorg/sparagliding-meshmap/meshpb"
)

// ErrNoPacket is returned by Decode for envelopes that carry no packet.
var ErrNoPacket = errors.New("envelope has no packet")

const (
	statusNodeSegment = "/stat/!"
	statusSegment     = "/stat/"
)

// Envelope is a decoded service envelope with its transport context.
type Envelope struct {
	*meshpb.ServiceEnvelope
	Topic      string
	ReceivedAt time.Time
}

// Decoded returns the decoded payload, or nil while the packet is encrypted.
func (e *Envelope) Decoded() *meshpb.Data {
	if e.ServiceEnvelope == nil {
		return nil
	}
	return e.Packet.GetDecoded()
}

// StatusHandler receives connectivity status messages.
type StatusHandler interface {
	HandleStatus(ctx context.Context, topic string, payload []byte) error
}

// AuditSink stores every decoded envelope, decrypted or not, with the raw
// transport bytes.
type AuditSink interface {
	SaveEnvelope(ctx context.Context, env *Envelope, raw []byte) error
}

// Ingestor classifies topics, decodes and decrypts envelopes and hands the
// result to a Router.
type Ingestor struct {
	router *Router
	status StatusHandler
	audit  AuditSink
	keys   []meshcrypt.Key
	now    func() time.Time
	logf   func(format string, args ...any)
}

// NewIngestor creates an ingestor. status and audit may be nil.
func NewIngestor(router *Router, status StatusHandler, audit AuditSink, keys []meshcrypt.Key, logf func(string, ...any)) *Ingestor {
	return &Ingestor{
		router: router,
		status: status,
		audit:  audit,
		keys:   keys,
		now:    time.Now,
		logf:   logf,
	}
}

// SetClock overrides the receive time source.
func (ing *Ingestor) SetClock(now func() time.Time) { ing.now = now }

// IsStatusTopic reports whether topic carries a node connectivity status.
func IsStatusTopic(topic string) bool {
	return strings.Contains(topic, statusNodeSegment)
}

// Decode parses a raw service envelope leniently. It returns ErrNoPacket
// when the envelope is well formed but empty.
func Decode(raw []byte) (*meshpb.ServiceEnvelope, error) {
	env, err := meshpb.DecodeEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.GetPacket() == nil {
		return nil, ErrNoPacket
	}
	return env, nil
}

// HandleMessage is the entry point for one transport message. Errors are
// local to the message.
func (ing *Ingestor) HandleMessage(ctx context.Context, topic string, raw []byte) error {
	if IsStatusTopic(topic) {
		if ing.status == nil {
			return nil
		}
		return ing.status.HandleStatus(ctx, topic, raw)
	}
	if strings.Contains(topic, statusSegment) {
		return nil
	}

	se, err := Decode(raw)
	if errors.Is(err, ErrNoPacket) {
		return nil
	}
	if err != nil {
		return err
	}

	if data := meshcrypt.Decrypt(se.Packet, ing.keys); data != nil {
		meshpb.SetDecoded(se.Packet, data)
	}

	env := &Envelope{ServiceEnvelope: se, Topic: topic, ReceivedAt: ing.now().UTC()}
	if ing.audit != nil {
		if err := ing.audit.SaveEnvelope(ctx, env, raw); err != nil {
			ing.logf("ingest: audit %s from !%08x: %v", topic, se.Packet.From, err)
		}
	}

	if env.Decoded() == nil {
		return nil
	}
	return ing.router.Route(ctx, env)
}
