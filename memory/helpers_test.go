package memory

import (
	"github.com/sakhilabs/sakhid/contracts"
)

func episodicRecord(text string) contracts.EpisodicRecord {
	return contracts.EpisodicRecord{
		SchemaVersion: contracts.SchemaVersion,
		ID:            NewRecordID(),
		When:          "2024-01-01T10:00:00Z",
		Text:          text,
	}
}

func semanticTrait(key, value string, confidence float64) contracts.SemanticTrait {
	return contracts.SemanticTrait{
		SchemaVersion: contracts.SchemaVersion,
		Key:           key,
		Value:         value,
		Confidence:    confidence,
		FirstSeen:     "2024-01-01T10:00:00Z",
		LastUpdated:   "2024-01-01T10:00:00Z",
	}
}

func identityEdge(from, to, relationship string) contracts.IdentityEdge {
	return contracts.IdentityEdge{
		SchemaVersion: contracts.SchemaVersion,
		From:          from,
		To:            to,
		Relationship:  relationship,
	}
}
