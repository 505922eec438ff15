// Package contracts holds the shared data contracts for the sakhid pipeline:
// messages, facets, context packs, plan graphs and memory records. Every
// record carries a schema version tag so stored blobs remain identifiable
// across upgrades.
package contracts

import "time"

// SchemaVersion tags every record produced by this build.
const SchemaVersion = "0.1.0"

// Modality describes how a message entered the system.
type Modality string

const (
	ModalityText   Modality = "text"
	ModalityVoice  Modality = "voice"
	ModalitySensor Modality = "sensor"
	ModalitySystem Modality = "system"
)

// Channel identifies the surface a message came from or a nudge goes to.
type Channel string

const (
	ChannelMobile      Channel = "mobile"
	ChannelWeb         Channel = "web"
	ChannelCalendar    Channel = "calendar"
	ChannelWearable    Channel = "wearable"
	ChannelIntegration Channel = "integration"
	ChannelSystem      Channel = "system"
)

// GeoTag is an optional coarse location attached to a message.
type GeoTag struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	AccuracyM *float64 `json:"accuracy_m,omitempty"`
}

// Span is a character range into the source message text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// MessageContent is the textual payload of a user turn.
type MessageContent struct {
	Text     string   `json:"text"`
	Modality Modality `json:"modality"`
	Locale   string   `json:"locale"`
}

// MessageSource records where a message originated.
type MessageSource struct {
	Channel Channel `json:"channel"`
	Device  string  `json:"device,omitempty"`
}

// MessageMetadata carries ambient per-message facts such as timezone,
// an optional geotag and free-form extras (e.g. a "dnd" flag).
type MessageMetadata struct {
	Timezone string         `json:"timezone"`
	GeoTag   *GeoTag        `json:"geotag,omitempty"`
	Extras   map[string]any `json:"extras,omitempty"`
}

// Message is one user turn. It is immutable once created and is the unit
// of work for a single pipeline run.
type Message struct {
	SchemaVersion string          `json:"schema_version"`
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Content       MessageContent  `json:"content"`
	Source        MessageSource   `json:"source"`
	Metadata      MessageMetadata `json:"metadata"`
}

// Clamp01 bounds confidence-like values to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
