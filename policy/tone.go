package policy

import (
	"strings"

	"github.com/sakhilabs/sakhid/contracts"
)

// ToneProfile is the reply envelope: how the text should sound.
type ToneProfile struct {
	Style  string // warm, encouraging, focused, lowkey
	Pacing string // slow, medium, fast
	Voice  string // calm, bright, steady, whisper
}

// lowCoherenceThreshold drops the tone to lowkey when the awareness
// coherence signal falls below it.
const lowCoherenceThreshold = 0.45

// SelectTone walks a fixed decision table in order; the first matching row
// wins. Quiet hours and low coherence always override the objective.
func SelectTone(pack contracts.ContextPack, plan contracts.PlanGraph) ToneProfile {
	if inQuietHours(pack) || lowCoherence(pack) {
		return ToneProfile{Style: "lowkey", Pacing: "slow", Voice: "whisper"}
	}
	if plan.ObjectiveNow == contracts.ObjectiveListen {
		return ToneProfile{Style: "warm", Pacing: "slow", Voice: "calm"}
	}
	if plan.ObjectiveNow == contracts.ObjectiveEncourage {
		return ToneProfile{Style: "encouraging", Pacing: "medium", Voice: "bright"}
	}
	if pref := tonePreference(pack); pref != (ToneProfile{}) {
		return pref
	}
	if pack.Rhythms.CircadianPhase == "evening" {
		return ToneProfile{Style: "focused", Pacing: "slow", Voice: "steady"}
	}
	return ToneProfile{Style: "focused", Pacing: "medium", Voice: "steady"}
}

func lowCoherence(pack contracts.ContextPack) bool {
	ac := pack.Rhythms.AwarenessCoherence
	return ac != nil && *ac < lowCoherenceThreshold
}

// inQuietHours checks the pack clock against every quiet window. Windows
// whose end precedes their start wrap past midnight.
func inQuietHours(pack contracts.ContextPack) bool {
	clock := clockMinutes(pack.Now.Clock)
	if clock < 0 {
		return false
	}
	for _, window := range pack.Constraints.QuietHours {
		start := clockMinutes(window[0])
		end := clockMinutes(window[1])
		if start < 0 || end < 0 {
			continue
		}
		if start <= end {
			if clock >= start && clock <= end {
				return true
			}
		} else if clock >= start || clock <= end {
			return true
		}
	}
	return false
}

// clockMinutes parses "HH:MM" (or the time part of an RFC3339 stamp) into
// minutes since midnight, -1 on malformed input.
func clockMinutes(s string) int {
	if idx := strings.IndexByte(s, 'T'); idx >= 0 {
		s = s[idx+1:]
	}
	if len(s) < 5 || s[2] != ':' {
		return -1
	}
	hour := digits2(s[0], s[1])
	minute := digits2(s[3], s[4])
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return -1
	}
	return hour*60 + minute
}

func digits2(a, b byte) int {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return -1
	}
	return int(a-'0')*10 + int(b-'0')
}

// tonePreference reads an explicit tone preference out of the semantic
// profile ("tone.style", plus optional "tone.pacing" / "tone.voice").
func tonePreference(pack contracts.ContextPack) ToneProfile {
	prefs := pack.SemanticProfile.Preferences
	if prefs == nil {
		return ToneProfile{}
	}
	style, _ := prefs["tone.style"].(string)
	switch style {
	case "warm", "encouraging", "focused", "lowkey":
	default:
		return ToneProfile{}
	}
	profile := ToneProfile{Style: style, Pacing: "medium", Voice: "calm"}
	if pacing, ok := prefs["tone.pacing"].(string); ok && pacing != "" {
		profile.Pacing = pacing
	}
	if voice, ok := prefs["tone.voice"].(string); ok && voice != "" {
		profile.Voice = voice
	}
	return profile
}
