package ability

import (
	"errors"
	"testing"
)

func TestBuilderChaining(t *testing.T) {
	b := NewAbilityBuilder()
	if b.Can("read", "Post").Cannot("delete", "Post") != b {
		t.Fatalf("expected mutators to return the same builder")
	}
	a := mustBuild(t, b)
	if !a.Can("read", SubjectRef("Post")) || a.Can("delete", SubjectRef("Post")) {
		t.Fatalf("expected chained rules to apply")
	}
}

func TestBuilderReset(t *testing.T) {
	b := NewAbilityBuilder().Can("read", "Post")
	b.Reset()
	if len(b.Rules()) != 0 {
		t.Fatalf("expected reset to drop pending rules")
	}
	a := mustBuild(t, b)
	if a.Can("read", SubjectRef("Post")) {
		t.Fatalf("expected ability built after reset to deny")
	}
}

func TestBuilderFromRulesAndPermissions(t *testing.T) {
	b := NewAbilityBuilder().
		FromRules([]Rule{{Action: "Read", Subject: ""}}).
		FromPermissions([]Permission{{Actions: []string{"update"}, Subjects: []string{"Post", "Comment"}}})

	rules := b.Rules()
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	// FromRules normalizes: action lower-cased, empty subject becomes all.
	var claim *Rule
	for i := range rules {
		if rules[i].Action == "read" {
			claim = &rules[i]
		}
	}
	if claim == nil || claim.Subject != SubjectAll {
		t.Fatalf("expected normalized claim rule, got %+v", rules)
	}
}

func TestBuilderFromJSONStickyError(t *testing.T) {
	b := NewAbilityBuilder().FromJSONString("{ invalid json").Can("read", "Post")
	if b.Err() == nil {
		t.Fatalf("expected sticky decode error")
	}
	if _, err := b.Build(); !errors.Is(err, ErrDecodingFailed) {
		t.Fatalf("expected Build to surface the decode error, got %v", err)
	}
	b.Reset()
	if _, err := b.Build(); err != nil {
		t.Fatalf("expected reset to clear the error, got %v", err)
	}
}

func TestBuilderFromJSONEnvelope(t *testing.T) {
	payload := `{"version":"1.0","permissions":[{"action":"read","subject":"Post","conditions":{"published":true}}]}`
	a := mustBuild(t, NewAbilityBuilder().FromJSONString(payload))

	published := Record{Type: "Post", Attrs: map[string]any{"published": true}}
	draft := Record{Type: "Post", Attrs: map[string]any{"published": false}}
	if !a.Can("read", published) || a.Can("read", draft) {
		t.Fatalf("expected decoded conditions to gate the check")
	}
}

func TestBuilderIncrementalBuilds(t *testing.T) {
	b := NewAbilityBuilder().Can("read", "Post")
	first := mustBuild(t, b)
	b.Can("update", "Post")
	second := mustBuild(t, b)

	if first.Can("update", SubjectRef("Post")) {
		t.Fatalf("expected the first build to be unaffected by later additions")
	}
	if !second.Can("update", SubjectRef("Post")) {
		t.Fatalf("expected the second build to carry the added rule")
	}
}
