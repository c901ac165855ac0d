package messaging

import (
	"context"

	"github.com/cyberorg/sparagliding-meshmap/ingest"
	"github.com/cyberorg/sparagliding-meshmap/store"
)

// EnvelopeAudit records every envelope with its raw transport bytes.
type EnvelopeAudit struct {
	DB *store.DB
}

var _ ingest.AuditSink = EnvelopeAudit{}

func (a EnvelopeAudit) SaveEnvelope(ctx context.Context, env *ingest.Envelope, raw []byte) error {
	pkt := env.Packet
	rec := &store.ServiceEnvelope{
		Topic:     env.Topic,
		ChannelID: env.ChannelId,
		GatewayID: env.GatewayId,
		PacketID:  pkt.Id,
		From:      pkt.From,
		To:        pkt.To,
		Payload:   raw,
		CreatedAt: env.ReceivedAt,
	}
	if data := env.Decoded(); data != nil {
		port := int64(data.GetPortnum())
		rec.PortNum = &port
		rec.Decrypted = true
	}
	return a.DB.SaveServiceEnvelope(ctx, rec)
}
