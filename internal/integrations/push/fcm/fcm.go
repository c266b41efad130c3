// FCM push provider. Recipients are addressed by topic so the core does not
// need to track device tokens; client apps subscribe to their own user topic
// on login.
package fcm

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"cargoline/internal/types"
)

type Provider struct {
	client *messaging.Client
}

func New(client *messaging.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Send(ctx context.Context, recipient types.ID, title, body string, payload map[string]string) error {
	if recipient == "" {
		return fmt.Errorf("empty recipient")
	}

	msg := &messaging.Message{
		Topic: "user-" + string(recipient),
		Data:  payload,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	if _, err := p.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending FCM to %s: %w", recipient, err)
	}
	return nil
}
