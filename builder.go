package ability

// Builders provide a fluent API for assembling rule sets; every mutator
// returns the builder so calls chain.

// RuleOption refines a rule created through Can/Cannot.
type RuleOption func(*Rule)

// WithConditions attaches a condition tree to the rule.
func WithConditions(conds Conditions) RuleOption {
	return func(r *Rule) { r.Conditions = conds }
}

// WithConditionMap attaches a condition tree given as a plain decoded map.
func WithConditionMap(conds map[string]any) RuleOption {
	return func(r *Rule) { r.Conditions = ConditionsFromAny(conds) }
}

// WithFields restricts the rule to the given field list.
func WithFields(fields ...string) RuleOption {
	return func(r *Rule) { r.Fields = fields }
}

// WithPriority sets the in-memory retrieval priority (never serialized).
func WithPriority(priority int) RuleOption {
	return func(r *Rule) { r.Priority = priority }
}

// WithReason records a human-readable reason on the rule.
func WithReason(reason string) RuleOption {
	return func(r *Rule) { r.Reason = reason }
}

// AbilityBuilder accumulates rules and produces a query-ready Ability.
// Decode errors from the From* entry points stick to the builder and
// surface from Build (or Err).
type AbilityBuilder struct {
	rules []Rule
	err   error
}

func NewAbilityBuilder() *AbilityBuilder { return &AbilityBuilder{} }

// Can appends a grant rule for the action/subject pair.
func (b *AbilityBuilder) Can(action, subject string, opts ...RuleOption) *AbilityBuilder {
	return b.append(action, subject, false, opts)
}

// Cannot appends a deny rule for the action/subject pair.
func (b *AbilityBuilder) Cannot(action, subject string, opts ...RuleOption) *AbilityBuilder {
	return b.append(action, subject, true, opts)
}

func (b *AbilityBuilder) append(action, subject string, inverted bool, opts []RuleOption) *AbilityBuilder {
	r := Rule{
		Action:   NewAction(action),
		Subject:  NewSubjectType(subject),
		Inverted: inverted,
	}
	for _, opt := range opts {
		opt(&r)
	}
	b.rules = append(b.rules, r.normalize())
	return b
}

// FromRules appends externally constructed rules.
func (b *AbilityBuilder) FromRules(rules []Rule) *AbilityBuilder {
	for _, r := range rules {
		b.rules = append(b.rules, r.normalize())
	}
	return b
}

// FromPermissions expands wire DTOs into rules and appends them.
func (b *AbilityBuilder) FromPermissions(perms []Permission) *AbilityBuilder {
	coder := NewPermissionCoder()
	for _, p := range perms {
		b.rules = append(b.rules, coder.Rules(p)...)
	}
	return b
}

// FromJSON parses wire JSON (envelope or bare permission array) and appends
// the decoded rules. A decode failure sticks to the builder.
func (b *AbilityBuilder) FromJSON(data []byte) *AbilityBuilder {
	if b.err != nil {
		return b
	}
	rules, err := NewPermissionCoder().DecodeRules(data)
	if err != nil {
		b.err = err
		return b
	}
	b.rules = append(b.rules, rules...)
	return b
}

// FromJSONString is FromJSON over a string payload.
func (b *AbilityBuilder) FromJSONString(s string) *AbilityBuilder {
	return b.FromJSON([]byte(s))
}

// Reset drops all pending rules and any sticky decode error.
func (b *AbilityBuilder) Reset() *AbilityBuilder {
	b.rules = nil
	b.err = nil
	return b
}

// Rules returns the pending rules sorted by the retrieval precedence order.
func (b *AbilityBuilder) Rules() []Rule {
	out := make([]Rule, len(b.rules))
	copy(out, b.rules)
	ptrs := make([]*Rule, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	sortRules(ptrs)
	sorted := make([]Rule, len(ptrs))
	for i, p := range ptrs {
		sorted[i] = *p
	}
	return sorted
}

// Err returns the sticky decode error, if any.
func (b *AbilityBuilder) Err() error { return b.err }

// Build constructs the Ability. With zero rules the result denies
// everything. Building after incremental additions is safe; the builder
// stays usable afterwards.
func (b *AbilityBuilder) Build(opts ...Option) (*Ability, error) {
	if b.err != nil {
		return nil, b.err
	}
	a, err := New(opts...)
	if err != nil {
		return nil, err
	}
	a.AddRules(b.rules)
	return a, nil
}
