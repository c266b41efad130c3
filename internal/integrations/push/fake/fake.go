// Recording push double. Also serves as the `log` push mode: with a logger
// attached every send is written to the log and nothing leaves the process.
package fake

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"cargoline/internal/types"
)

type Sent struct {
	Recipient types.ID
	Title     string
	Body      string
	Payload   map[string]string
}

type Provider struct {
	mu   sync.Mutex
	sent []Sent

	log *zap.Logger

	// Err, when set, is returned by every Send.
	Err error
}

func New() *Provider { return &Provider{} }

// NewLogging returns a provider that records and logs each send.
func NewLogging(log *zap.Logger) *Provider { return &Provider{log: log} }

func (p *Provider) Send(ctx context.Context, recipient types.ID, title, body string, payload map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.sent = append(p.sent, Sent{Recipient: recipient, Title: title, Body: body, Payload: payload})
	if p.log != nil {
		p.log.Info("push notification",
			zap.String("recipient", string(recipient)),
			zap.String("title", title),
			zap.String("body", body))
	}
	return nil
}

// SentMessages returns a copy of everything sent so far.
func (p *Provider) SentMessages() []Sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Sent, len(p.sent))
	copy(out, p.sent)
	return out
}
