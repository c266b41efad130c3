// Package push abstracts the push-delivery transport. No ordering guarantee
// is expected of implementations.
package push

import (
	"context"

	"cargoline/internal/types"
)

type Provider interface {
	Send(ctx context.Context, recipient types.ID, title, body string, payload map[string]string) error
}
