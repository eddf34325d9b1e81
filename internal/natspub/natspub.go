// Package natspub mirrors standings events onto NATS subjects so other
// services (notifiers, archival, analytics) can follow contests without
// holding an SSE connection to this process.
package natspub

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/programme-lv/judge/api"
)

// Publisher forwards standings events to "standings.<contestID>".
// Publish failures are logged and swallowed: the in-process stream is
// the source of truth and must not stall on a flaky broker.
type Publisher struct {
	nc  *nats.Conn
	log *slog.Logger
}

func NewPublisher(nc *nats.Conn, log *slog.Logger) *Publisher {
	return &Publisher{nc: nc, log: log}
}

func (p *Publisher) Publish(contestID int64, ev api.StandingsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to encode standings event", "contest", contestID, "error", err)
		return
	}
	subject := fmt.Sprintf("standings.%d", contestID)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn("failed to publish standings event",
			"subject", subject, "type", ev.Type, "error", err)
	}
}
