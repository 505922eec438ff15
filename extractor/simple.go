package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sakhilabs/sakhid/contracts"
)

type needKeyword struct {
	keyword string
	need    contracts.PersonNeed
}

// Keyword table walked in order; the first hit decides the need.
var needKeywords = []needKeyword{
	{"overwhelmed", contracts.NeedListen},
	{"exhausted", contracts.NeedListen},
	{"tired", contracts.NeedListen},
	{"help me", contracts.NeedPlan},
	{"need to plan", contracts.NeedPlan},
	{"can you remind", contracts.NeedPlan},
	{"cheer me", contracts.NeedEncourage},
	{"hold me accountable", contracts.NeedEncourage},
	{"question", contracts.NeedClarify},
	{"can you clarify", contracts.NeedClarify},
	{"vent", contracts.NeedVent},
}

var activityVerbs = []string{"finish", "email", "book", "call", "schedule", "write", "review", "prep", "plan"}

type decisionPattern struct {
	intent string
	regex  *regexp.Regexp
	slots  func(text string) map[string]string
}

var decisionPatterns = []decisionPattern{
	{
		intent: "wardrobe",
		regex:  regexp.MustCompile(`(?i)(what\s+should\s+i\s+wear|outfit|dress\s+code)`),
		slots: func(text string) map[string]string {
			slots := map[string]string{}
			switch {
			case regexp.MustCompile(`(?i)wedding|party`).MatchString(text):
				slots["setting"] = "event"
			case regexp.MustCompile(`(?i)conference|meeting`).MatchString(text):
				slots["setting"] = "conference"
			}
			if regexp.MustCompile(`(?i)outdoor|lawn`).MatchString(text) {
				slots["indoor"] = "outdoor"
			}
			if regexp.MustCompile(`(?i)humid|hot`).MatchString(text) {
				slots["climate"] = "humid"
			}
			return slots
		},
	},
	{
		intent: "preworkout-meal",
		regex:  regexp.MustCompile(`(?i)(eat|snack).*(before|pre).*workout`),
		slots: func(text string) map[string]string {
			slots := map[string]string{}
			if m := regexp.MustCompile(`(?i)\b(\d{2})\s?m`).FindStringSubmatch(text); m != nil {
				slots["window"] = m[1] + "m"
			}
			if regexp.MustCompile(`(?i)yoga|vinyasa`).MatchString(text) {
				slots["intensity"] = "vinyasa"
			}
			return slots
		},
	},
	{
		intent: "travel-pack",
		regex:  regexp.MustCompile(`(?i)(pack|packing)\s+(list|for)`),
		slots: func(text string) map[string]string {
			slots := map[string]string{}
			switch {
			case regexp.MustCompile(`(?i)cold|snow`).MatchString(text):
				slots["climate"] = "cold"
			case regexp.MustCompile(`(?i)hot|humid`).MatchString(text):
				slots["climate"] = "hot"
			}
			if m := regexp.MustCompile(`(?i)(\d+)\s*(day|night)`).FindStringSubmatch(text); m != nil {
				slots["duration"] = m[1]
			}
			return slots
		},
	},
	{
		intent: "route",
		regex:  regexp.MustCompile(`(?i)(best\s+way|route|how\s+do\s+i\s+get)`),
		slots: func(text string) map[string]string {
			slots := map[string]string{}
			if m := regexp.MustCompile(`(?i)by\s+(\d{1,2}:?\d{0,2}\s*(?:am|pm)?)`).FindStringSubmatch(text); m != nil {
				slots["arrival"] = strings.TrimSpace(m[1])
			}
			return slots
		},
	},
	{
		intent: "gift",
		regex:  regexp.MustCompile(`(?i)(gift|present)`),
		slots: func(text string) map[string]string {
			slots := map[string]string{}
			if m := regexp.MustCompile(`(?i)birthday|anniversary|wedding`).FindString(text); m != "" {
				slots["occasion"] = strings.ToLower(m)
			}
			if m := regexp.MustCompile(`(?i)friend|partner|mom|dad|boss`).FindString(text); m != "" {
				slots["recipient"] = strings.ToLower(m)
			}
			return slots
		},
	},
}

// SimpleExtractor applies keyword and pattern rules. It is deterministic
// for identical input text.
type SimpleExtractor struct{}

func (SimpleExtractor) Extract(ctx context.Context, msg contracts.Message) (Output, error) {
	start := time.Now()
	text := strings.ToLower(msg.Content.Text)

	var facets []contracts.Facet
	facets = append(facets, extractPersonFacet(msg.ID, text)...)
	facets = append(facets, extractActivityFacets(msg.ID, text)...)
	facets = append(facets, extractDecisionFacets(msg.ID, text)...)

	for i := range facets {
		if err := contracts.ValidateFacet(&facets[i]); err != nil {
			return Output{}, err
		}
	}
	return Output{
		Facets:      facets,
		Diagnostics: Diagnostics{LatencyMS: time.Since(start).Milliseconds()},
	}, nil
}

func extractPersonFacet(messageID, text string) []contracts.Facet {
	for _, kw := range needKeywords {
		if !strings.Contains(text, kw.keyword) {
			continue
		}
		intention := contracts.IntentionVent
		if kw.need == contracts.NeedPlan {
			intention = contracts.IntentionPlan
		}
		return []contracts.Facet{{
			SchemaVersion: contracts.SchemaVersion,
			ID:            messageID + "-person",
			MessageID:     messageID,
			Type:          contracts.FacetPerson,
			Confidence:    0.6,
			Person: &contracts.PersonDimensions{
				Need:      kw.need,
				Intention: intention,
			},
		}}
	}
	return nil
}

func extractActivityFacets(messageID, text string) []contracts.Facet {
	var facets []contracts.Facet
	for _, sentence := range regexp.MustCompile(`[.?!]`).Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		var verb string
		for _, v := range activityVerbs {
			if strings.HasPrefix(sentence, v) || strings.Contains(sentence, " "+v+" ") {
				verb = v
				break
			}
		}
		if verb == "" {
			continue
		}
		effort := contracts.EffortLight
		if strings.Contains(sentence, "deck") || strings.Contains(sentence, "review") {
			effort = contracts.EffortDeep
		}
		importance := contracts.ImportanceMedium
		if strings.Contains(sentence, "tomorrow") {
			importance = contracts.ImportanceHigh
		}
		horizon := contracts.HorizonLater
		switch {
		case strings.Contains(sentence, "today"):
			horizon = contracts.HorizonToday
		case strings.Contains(sentence, "tomorrow"):
			horizon = contracts.HorizonSoon
		}
		facets = append(facets, contracts.Facet{
			SchemaVersion: contracts.SchemaVersion,
			ID:            fmt.Sprintf("%s-activity-%d", messageID, len(facets)+1),
			MessageID:     messageID,
			Type:          contracts.FacetActivity,
			Confidence:    0.5,
			Activity: &contracts.ActivityDimensions{
				Action:     sentence,
				Effort:     effort,
				Importance: importance,
				Horizon:    horizon,
			},
		})
	}
	return facets
}

func extractDecisionFacets(messageID, text string) []contracts.Facet {
	var facets []contracts.Facet
	for _, pattern := range decisionPatterns {
		if !pattern.regex.MatchString(text) {
			continue
		}
		slots := map[string]string{}
		if pattern.slots != nil {
			slots = pattern.slots(text)
		}
		facets = append(facets, contracts.Facet{
			SchemaVersion: contracts.SchemaVersion,
			ID:            fmt.Sprintf("%s-decision-%d", messageID, len(facets)+1),
			MessageID:     messageID,
			Type:          contracts.FacetActivity,
			Confidence:    0.7,
			Activity: &contracts.ActivityDimensions{
				Action:     "decision:" + pattern.intent,
				Effort:     contracts.EffortLight,
				Importance: contracts.ImportanceMedium,
			},
			Extras: map[string]any{
				contracts.ExtraDecisionIntent: pattern.intent,
				contracts.ExtraDecisionSlots:  slots,
			},
		})
	}
	return facets
}
