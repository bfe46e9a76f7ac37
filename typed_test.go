package ability

import "testing"

type appAction string

type appSubject string

const (
	actRead   appAction = "read"
	actUpdate appAction = "update"

	subPost appSubject = "Post"
	subUser appSubject = "User"
)

func TestTypedAbility(t *testing.T) {
	base := mustBuild(t, NewAbilityBuilder().
		Can("read", "Post").
		Cannot("update", "Post"))

	typed := NewTypedAbility[appAction, appSubject](base)
	if !typed.Can(actRead, subPost) {
		t.Fatalf("expected typed read Post to be allowed")
	}
	if typed.Can(actUpdate, subPost) {
		t.Fatalf("expected typed update Post to be denied")
	}
	if typed.Cannot(actRead, subPost) {
		t.Fatalf("expected typed cannot to negate can")
	}
	if typed.Unwrap() != base {
		t.Fatalf("expected Unwrap to expose the underlying ability")
	}
}

func TestTypedVocabularySoftFail(t *testing.T) {
	perms := []Permission{
		{Actions: []string{"read"}, Subjects: []string{"Post"}},
		// unknown action and unknown subject get dropped, wildcards pass
		{Actions: []string{"teleport"}, Subjects: []string{"Post"}},
		{Actions: []string{"read"}, Subjects: []string{"Spaceship"}},
		{Actions: []string{"manage"}, Subjects: []string{"User"}},
		{Actions: []string{"update"}, Subjects: []string{"all"}},
	}

	typed, err := TypedFromPermissions(perms,
		[]appAction{actRead, actUpdate},
		[]appSubject{subPost, subUser})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if got := len(typed.Unwrap().Rules()); got != 3 {
		t.Fatalf("expected 2 out-of-vocabulary rules to be dropped, kept %d", got)
	}
	if !typed.Can(actRead, subPost) {
		t.Fatalf("expected in-vocabulary rule to survive")
	}
	if !typed.Can(actUpdate, subUser) {
		t.Fatalf("expected manage User wildcard to survive")
	}
	if typed.Unwrap().Can("teleport", SubjectRef("Post")) {
		t.Fatalf("expected unknown action rule to be dropped, not raised")
	}
}

func TestTypedInstanceCheck(t *testing.T) {
	base := mustBuild(t, NewAbilityBuilder().
		Can("update", "Post", WithConditionMap(map[string]any{"authorId": 1})))

	typed := NewTypedAbility[appAction, appSubject](base)
	mine := Record{Type: "Post", Attrs: map[string]any{"authorId": 1}}
	theirs := Record{Type: "Post", Attrs: map[string]any{"authorId": 2}}
	if !typed.CanInstance(actUpdate, mine) {
		t.Fatalf("expected own post to be updatable")
	}
	if typed.CanInstance(actUpdate, theirs) {
		t.Fatalf("expected someone else's post to be denied")
	}
}
