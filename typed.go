package ability

// TypedAbility wraps an Ability with compile-time-checked action and
// subject vocabularies for statically-typed call sites.
type TypedAbility[A ~string, S ~string] struct {
	ability *Ability
}

func NewTypedAbility[A ~string, S ~string](a *Ability) *TypedAbility[A, S] {
	return &TypedAbility[A, S]{ability: a}
}

// Can answers a type-level check for the enum pair.
func (t *TypedAbility[A, S]) Can(action A, subject S) bool {
	return t.ability.Can(string(action), SubjectRef(NewSubjectType(string(subject))))
}

// Cannot is the negation of Can.
func (t *TypedAbility[A, S]) Cannot(action A, subject S) bool {
	return !t.Can(action, subject)
}

// CanInstance checks a concrete subject instance, with condition
// evaluation.
func (t *TypedAbility[A, S]) CanInstance(action A, subject Subject) bool {
	return t.ability.Can(string(action), subject)
}

// Unwrap exposes the stringly-typed ability underneath.
func (t *TypedAbility[A, S]) Unwrap() *Ability { return t.ability }

// TypedFromPermissions decodes wire DTOs into a typed ability. The typed
// vocabulary is deliberately more restrictive than the wire format:
// expanded rules whose action or subject falls outside it are silently
// dropped rather than raised. Wildcard actions and subjects always pass.
func TypedFromPermissions[A ~string, S ~string](perms []Permission, actions []A, subjects []S, opts ...Option) (*TypedAbility[A, S], error) {
	actionVocab := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		actionVocab[NewAction(string(a))] = struct{}{}
	}
	subjectVocab := make(map[SubjectType]struct{}, len(subjects))
	for _, s := range subjects {
		subjectVocab[NewSubjectType(string(s))] = struct{}{}
	}

	coder := NewPermissionCoder()
	var kept []Rule
	for _, p := range perms {
		for _, r := range coder.Rules(p) {
			if !r.Action.IsWildcard() {
				if _, ok := actionVocab[r.Action]; !ok {
					continue
				}
			}
			if !r.Subject.IsWildcard() {
				if _, ok := subjectVocab[r.Subject]; !ok {
					continue
				}
			}
			kept = append(kept, r)
		}
	}

	a, err := New(opts...)
	if err != nil {
		return nil, err
	}
	a.AddRules(kept)
	return NewTypedAbility[A, S](a), nil
}
