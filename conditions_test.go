package ability

import (
	"reflect"
	"testing"
)

func TestOperatorGreaterThan(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{"age": map[string]any{"$gt": 18}})

	if !Matches(map[string]any{"age": 25}, conds) {
		t.Fatalf("expected 25 > 18 to match")
	}
	if Matches(map[string]any{"age": 18}, conds) {
		t.Fatalf("expected 18 > 18 not to match")
	}
	if Matches(map[string]any{"age": 16}, conds) {
		t.Fatalf("expected 16 > 18 not to match")
	}
	if Matches(map[string]any{}, conds) {
		t.Fatalf("expected missing age not to match")
	}
}

func TestOperatorRangeCombinator(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{
		"$and": []any{
			map[string]any{"age": map[string]any{"$gte": 18}},
			map[string]any{"age": map[string]any{"$lt": 65}},
		},
	})

	if !Matches(map[string]any{"age": 30}, conds) {
		t.Fatalf("expected 30 to satisfy [18, 65)")
	}
	if Matches(map[string]any{"age": 16}, conds) {
		t.Fatalf("expected 16 to fail [18, 65)")
	}
	if Matches(map[string]any{"age": 70}, conds) {
		t.Fatalf("expected 70 to fail [18, 65)")
	}
}

func TestOperatorMembership(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{"status": map[string]any{"$in": []any{"draft", "review"}}})
	if !Matches(map[string]any{"status": "draft"}, conds) {
		t.Fatalf("expected draft in set")
	}
	if Matches(map[string]any{"status": "published"}, conds) {
		t.Fatalf("expected published not in set")
	}

	// Array-valued instance fields match when any element is a member.
	tagged := ConditionsFromAny(map[string]any{"tags": map[string]any{"$in": []any{"urgent"}}})
	if !Matches(map[string]any{"tags": []any{"misc", "urgent"}}, tagged) {
		t.Fatalf("expected tag intersection to match")
	}

	nin := ConditionsFromAny(map[string]any{"status": map[string]any{"$nin": []any{"archived"}}})
	if !Matches(map[string]any{"status": "draft"}, nin) {
		t.Fatalf("expected draft to pass $nin")
	}
	if Matches(map[string]any{"status": "archived"}, nin) {
		t.Fatalf("expected archived to fail $nin")
	}
}

func TestOperatorNotEqual(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{"role": map[string]any{"$ne": "guest"}})
	if !Matches(map[string]any{"role": "admin"}, conds) {
		t.Fatalf("expected admin != guest to match")
	}
	if Matches(map[string]any{"role": "guest"}, conds) {
		t.Fatalf("expected guest != guest not to match")
	}
	if Matches(map[string]any{}, conds) {
		t.Fatalf("expected missing key to fail $ne")
	}
}

func TestOrAndNotCombinators(t *testing.T) {
	or := ConditionsFromAny(map[string]any{
		"$or": []any{
			map[string]any{"role": "admin"},
			map[string]any{"role": "editor"},
		},
	})
	if !Matches(map[string]any{"role": "editor"}, or) {
		t.Fatalf("expected editor to satisfy $or")
	}
	if Matches(map[string]any{"role": "guest"}, or) {
		t.Fatalf("expected guest to fail $or")
	}

	not := ConditionsFromAny(map[string]any{
		"$not": map[string]any{"archived": true},
	})
	if !Matches(map[string]any{"archived": false}, not) {
		t.Fatalf("expected archived=false to satisfy $not")
	}
	if Matches(map[string]any{"archived": true}, not) {
		t.Fatalf("expected archived=true to fail $not")
	}
}

func TestNestedObjectConditions(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{
		"author": map[string]any{"id": 7, "active": true},
	})
	obj := map[string]any{"author": map[string]any{"id": 7, "active": true, "name": "meg"}}
	if !Matches(obj, conds) {
		t.Fatalf("expected nested conjunction to match")
	}
	if Matches(map[string]any{"author": map[string]any{"id": 7, "active": false}}, conds) {
		t.Fatalf("expected nested mismatch to fail")
	}
	if Matches(map[string]any{}, conds) {
		t.Fatalf("expected missing sub-object to fail")
	}
}

func TestNullSemantics(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{"deletedAt": nil})
	if !Matches(map[string]any{"deletedAt": nil}, conds) {
		t.Fatalf("expected explicit null to match a null condition")
	}
	if Matches(map[string]any{}, conds) {
		t.Fatalf("expected a missing key not to match a null condition")
	}
	if Matches(map[string]any{"deletedAt": "2024-01-01"}, conds) {
		t.Fatalf("expected non-null value not to match a null condition")
	}
}

func TestTypedEquality(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{"count": 1})
	if Matches(map[string]any{"count": "1"}, conds) {
		t.Fatalf("expected string \"1\" not to equal number 1")
	}
	if !Matches(map[string]any{"count": 1.0}, conds) {
		t.Fatalf("expected 1.0 to equal 1 numerically")
	}

	boolConds := ConditionsFromAny(map[string]any{"ok": true})
	if Matches(map[string]any{"ok": 1}, boolConds) {
		t.Fatalf("expected number 1 not to equal bool true")
	}
}

func TestEmptyConditionsMatchEverything(t *testing.T) {
	if !Matches(map[string]any{"anything": 1}, Conditions{}) {
		t.Fatalf("expected empty conditions to match")
	}
	if !Matches(map[string]any{}, Conditions{}) {
		t.Fatalf("expected empty conditions to match an empty object")
	}
}

func TestTemporalComparison(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{"createdAt": map[string]any{"$gt": "2024-01-01"}})
	if !Matches(map[string]any{"createdAt": "2024-06-15"}, conds) {
		t.Fatalf("expected later date to satisfy $gt")
	}
	if Matches(map[string]any{"createdAt": "2023-02-01"}, conds) {
		t.Fatalf("expected earlier date to fail $gt")
	}
}

func TestConditionFields(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{
		"$and": []any{
			map[string]any{"status": "draft"},
			map[string]any{"age": map[string]any{"$gte": 18}},
		},
		"$not":   map[string]any{"archived": true},
		"author": map[string]any{"id": 1},
	})
	got := ConditionFields(conds)
	want := []string{"age", "archived", "author.id", "status"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
}

func TestValueJSONRoundTrip(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{
		"a": 1,
		"b": map[string]any{"$in": []any{"x", "y"}},
		"c": nil,
	})
	v := Object(map[string]Value(conds))
	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Value
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !v.Equal(back) {
		t.Fatalf("expected round-tripped value to be equal")
	}
}

func TestDefaultEvaluatorWithoutAttributes(t *testing.T) {
	conds := ConditionsFromAny(map[string]any{"id": 1})
	ev := DefaultEvaluator{}
	if ev.Evaluate(conds, SubjectRef("Post")) {
		t.Fatalf("expected subject without attributes to fail conditions")
	}
	if !ev.Evaluate(conds, Record{Type: "Post", Attrs: map[string]any{"id": 1}}) {
		t.Fatalf("expected record attributes to satisfy conditions")
	}
}
