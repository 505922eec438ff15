package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/sakhilabs/sakhid/contracts"
)

func testMessage(text string) contracts.Message {
	return contracts.Message{
		SchemaVersion: contracts.SchemaVersion,
		ID:            "msg-1",
		UserID:        "user-1",
		Timestamp:     time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		Content: contracts.MessageContent{
			Text:     text,
			Modality: contracts.ModalityText,
		},
		Source: contracts.MessageSource{Channel: contracts.ChannelMobile},
	}
}

func TestSimpleExtractorNeedKeywords(t *testing.T) {
	tests := []struct {
		text string
		need contracts.PersonNeed
	}{
		{"I'm so overwhelmed by everything", contracts.NeedListen},
		{"can you help me sort out my week", contracts.NeedPlan},
		{"please hold me accountable on this", contracts.NeedEncourage},
		{"quick question about tomorrow", contracts.NeedClarify},
		{"I just need to vent for a second", contracts.NeedVent},
	}
	for _, tt := range tests {
		out, err := SimpleExtractor{}.Extract(context.Background(), testMessage(tt.text))
		if err != nil {
			t.Fatalf("Extract(%q): %v", tt.text, err)
		}
		var person *contracts.Facet
		for i := range out.Facets {
			if out.Facets[i].Type == contracts.FacetPerson {
				person = &out.Facets[i]
				break
			}
		}
		if person == nil {
			t.Fatalf("Extract(%q): no person facet", tt.text)
		}
		if person.Person.Need != tt.need {
			t.Errorf("Extract(%q): need = %q, want %q", tt.text, person.Person.Need, tt.need)
		}
		if person.Confidence != 0.6 {
			t.Errorf("Extract(%q): confidence = %v, want 0.6", tt.text, person.Confidence)
		}
	}
}

func TestSimpleExtractorFirstKeywordWins(t *testing.T) {
	out, err := SimpleExtractor{}.Extract(context.Background(),
		testMessage("I'm exhausted, help me plan the week"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, f := range out.Facets {
		if f.Type == contracts.FacetPerson {
			if f.Person.Need != contracts.NeedListen {
				t.Fatalf("need = %q, want listen (table order decides)", f.Person.Need)
			}
			return
		}
	}
	t.Fatal("no person facet")
}

func TestSimpleExtractorActivitySentences(t *testing.T) {
	out, err := SimpleExtractor{}.Extract(context.Background(),
		testMessage("I have to finish the deck tomorrow. Also email Sam about lunch."))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var activities []contracts.Facet
	for _, f := range out.Facets {
		if f.Type == contracts.FacetActivity {
			activities = append(activities, f)
		}
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activity facets, got %d", len(activities))
	}

	deck := activities[0]
	if deck.Activity.Effort != contracts.EffortDeep {
		t.Errorf("deck effort = %q, want deep", deck.Activity.Effort)
	}
	if deck.Activity.Importance != contracts.ImportanceHigh {
		t.Errorf("deck importance = %q, want high (mentions tomorrow)", deck.Activity.Importance)
	}
	if deck.Activity.Horizon != contracts.HorizonSoon {
		t.Errorf("deck horizon = %q, want soon", deck.Activity.Horizon)
	}

	email := activities[1]
	if email.Activity.Effort != contracts.EffortLight {
		t.Errorf("email effort = %q, want light", email.Activity.Effort)
	}
	if email.Activity.Horizon != contracts.HorizonLater {
		t.Errorf("email horizon = %q, want later", email.Activity.Horizon)
	}
}

func TestSimpleExtractorDecisionIntent(t *testing.T) {
	out, err := SimpleExtractor{}.Extract(context.Background(),
		testMessage("What should I wear to the wedding? It's outdoor and probably humid."))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var decision *contracts.Facet
	for i := range out.Facets {
		if _, ok := out.Facets[i].DecisionIntent(); ok {
			decision = &out.Facets[i]
			break
		}
	}
	if decision == nil {
		t.Fatal("expected a decision facet")
	}
	intent, _ := decision.DecisionIntent()
	if intent != "wardrobe" {
		t.Fatalf("intent = %q, want wardrobe", intent)
	}
	slots := decision.DecisionSlots()
	if slots["setting"] != "event" {
		t.Errorf("slots[setting] = %q, want event", slots["setting"])
	}
	if slots["indoor"] != "outdoor" {
		t.Errorf("slots[indoor] = %q, want outdoor", slots["indoor"])
	}
	if slots["climate"] != "humid" {
		t.Errorf("slots[climate] = %q, want humid", slots["climate"])
	}
	if decision.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", decision.Confidence)
	}
}

func TestSimpleExtractorNeutralMessageYieldsNoFacets(t *testing.T) {
	out, err := SimpleExtractor{}.Extract(context.Background(),
		testMessage("the weather was nice this morning"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(out.Facets) != 0 {
		t.Fatalf("expected no facets, got %d: %+v", len(out.Facets), out.Facets)
	}
}

func TestParseFacetJSONStampsIdentity(t *testing.T) {
	raw := `[{"type":"person","confidence":1.4,"person":{"need":"listen"}}]`
	facets, err := parseFacetJSON(raw, "msg-9")
	if err != nil {
		t.Fatalf("parseFacetJSON: %v", err)
	}
	if len(facets) != 1 {
		t.Fatalf("expected 1 facet, got %d", len(facets))
	}
	if facets[0].MessageID != "msg-9" {
		t.Errorf("message id = %q, want msg-9", facets[0].MessageID)
	}
	if facets[0].ID == "" {
		t.Error("expected assigned facet id")
	}
	if facets[0].Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", facets[0].Confidence)
	}
}

func TestParseFacetJSONDropsMalformedVariants(t *testing.T) {
	raw := "```json\n[{\"type\":\"activity\",\"confidence\":0.5},{\"type\":\"activity\",\"confidence\":0.5,\"activity\":{\"action\":\"prep notes\"}}]\n```"
	facets, err := parseFacetJSON(raw, "msg-9")
	if err != nil {
		t.Fatalf("parseFacetJSON: %v", err)
	}
	if len(facets) != 1 {
		t.Fatalf("expected the payload-less variant dropped, got %d facets", len(facets))
	}
	if facets[0].Activity == nil || facets[0].Activity.Action != "prep notes" {
		t.Fatalf("unexpected surviving facet: %+v", facets[0])
	}
}
