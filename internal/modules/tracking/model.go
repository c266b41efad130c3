// Location sample value type.
package tracking

import (
	"time"

	"cargoline/internal/types"
)

// Sample is one device position report. Samples are ephemeral: each newer
// sample for a subject supersedes the previous one, and nothing is kept
// in-core beyond the latest.
type Sample struct {
	Position   types.Point `json:"position"`
	SpeedKPH   *float64    `json:"speed_kph,omitempty"`
	HeadingDeg *float64    `json:"heading_deg,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}
