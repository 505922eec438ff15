// Package extractor turns a raw message into facets. The rule-based
// extractor is deterministic and synchronous; the Anthropic-backed one
// makes a network call and may fail, which callers treat as "no facets
// this turn".
package extractor

import (
	"context"

	"github.com/sakhilabs/sakhid/contracts"
)

// Diagnostics carries optional extraction metadata.
type Diagnostics struct {
	LatencyMS int64  `json:"latency_ms"`
	Model     string `json:"model,omitempty"`
}

// Output bundles extracted facets with diagnostics.
type Output struct {
	Facets      []contracts.Facet
	Diagnostics Diagnostics
}

// FacetExtractor is the collaborator contract the orchestrator consumes.
type FacetExtractor interface {
	Extract(ctx context.Context, msg contracts.Message) (Output, error)
}
