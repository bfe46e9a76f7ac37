package ability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/ability/logger"
	"github.com/oarkflow/ability/utils"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Action represents how a subject is being accessed. Comparison is
// case-insensitive; the reserved actions "manage" and "all" match any action.
type Action string

const (
	ActionManage Action = "manage"
	ActionAll    Action = "all"
)

// NewAction normalizes an action string (trimmed, lower-cased).
func NewAction(s string) Action {
	return Action(strings.ToLower(strings.TrimSpace(s)))
}

// IsWildcard reports whether the action matches every action.
func (a Action) IsWildcard() bool {
	return a == ActionManage || a == ActionAll
}

// Matches reports whether a, as a rule's action, covers the queried action.
func (a Action) Matches(queried Action) bool {
	return a.IsWildcard() || a == queried
}

// SubjectType names a kind of subject. Comparison is case-sensitive; the
// reserved types "all" and "any" match every subject type.
type SubjectType string

const (
	SubjectAll SubjectType = "all"
	SubjectAny SubjectType = "any"
)

// NewSubjectType normalizes a subject type string (trimmed only; subject
// types keep their case).
func NewSubjectType(s string) SubjectType {
	return SubjectType(strings.TrimSpace(s))
}

// IsWildcard reports whether the subject type matches every subject type.
func (s SubjectType) IsWildcard() bool {
	switch SubjectType(strings.ToLower(string(s))) {
	case SubjectAll, SubjectAny:
		return true
	}
	return false
}

// Matches reports whether s, as a rule's subject, covers the queried type.
func (s SubjectType) Matches(queried SubjectType) bool {
	return s.IsWildcard() || s == queried
}

// Subject is who or what a permission check is about.
type Subject interface {
	SubjectType() SubjectType
}

// AttributeSubject additionally exposes instance data for condition checks.
type AttributeSubject interface {
	Subject
	Attributes() map[string]any
}

// SubjectRef is a type-only subject marker: "can I do X to this subject
// type in general". Condition evaluation is bypassed for SubjectRef checks,
// so a conditioned rule applies as if its conditions were satisfied.
type SubjectRef SubjectType

func (r SubjectRef) SubjectType() SubjectType { return SubjectType(r) }

// Record is a dictionary-backed subject instance.
type Record struct {
	Type  SubjectType    `json:"type"`
	Attrs map[string]any `json:"attrs"`
}

func (r Record) SubjectType() SubjectType { return r.Type }

func (r Record) Attributes() map[string]any { return r.Attrs }

// Rule is one grant or deny statement. Immutable once constructed; Priority
// is an in-memory tie-break aid and never travels on the wire.
type Rule struct {
	Action     Action      `json:"action"`
	Subject    SubjectType `json:"subject"`
	Conditions Conditions  `json:"conditions,omitempty"`
	Fields     []string    `json:"fields,omitempty"`
	Inverted   bool        `json:"inverted,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Priority   int         `json:"-"`
}

// HasConditions reports whether the rule carries a condition tree. An empty
// (non-nil) tree still counts as conditioned for precedence purposes.
func (r Rule) HasConditions() bool { return r.Conditions != nil }

// Matches reports whether the rule covers the queried action/subject pair.
func (r Rule) Matches(action Action, subject SubjectType) bool {
	return r.Action.Matches(action) && r.Subject.Matches(subject)
}

func (r Rule) isWildcard() bool {
	return r.Action.IsWildcard() || r.Subject.IsWildcard()
}

// normalize applies the construction invariants: actions lower-case, empty
// subject defaults to "all".
func (r Rule) normalize() Rule {
	r.Action = NewAction(string(r.Action))
	r.Subject = NewSubjectType(string(r.Subject))
	if r.Subject == "" {
		r.Subject = SubjectAll
	}
	return r
}

// ============================================================================
// RULE INDEX
// ============================================================================

type ruleKey struct {
	action  Action
	subject SubjectType
}

// RuleIndex stores rules under an exact (action, subject) key plus a
// separate wildcard bucket, both kept precedence-sorted after every
// mutation. It is pure data structure: no decision logic lives here.
// All operations are serialized through one mutex, and Rebuild swaps the
// whole structure under that lock, so readers always see one consistent
// snapshot.
type RuleIndex struct {
	mu       sync.RWMutex
	byKey    map[ruleKey][]*Rule
	wildcard []*Rule
	all      []*Rule // insertion order
}

func NewRuleIndex() *RuleIndex {
	return &RuleIndex{byKey: make(map[ruleKey][]*Rule)}
}

// ruleBefore is the total precedence order: higher priority first, then
// conditioned rules before unconditional ones, then inverted before
// non-inverted. Applied with a stable sort so insertion order breaks ties.
func ruleBefore(a, b *Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.HasConditions() != b.HasConditions() {
		return a.HasConditions()
	}
	if a.Inverted != b.Inverted {
		return a.Inverted
	}
	return false
}

func sortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool { return ruleBefore(rules[i], rules[j]) })
}

// Add registers one rule and re-sorts the affected bucket.
func (idx *RuleIndex) Add(rule Rule) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(rule)
}

// AddRules registers a batch of rules, re-sorting once per touched bucket.
func (idx *RuleIndex) AddRules(rules []Rule) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, r := range rules {
		idx.addLocked(r)
	}
}

func (idx *RuleIndex) addLocked(rule Rule) {
	r := rule.normalize()
	idx.all = append(idx.all, &r)
	if r.isWildcard() {
		idx.wildcard = append(idx.wildcard, &r)
		sortRules(idx.wildcard)
		return
	}
	key := ruleKey{action: r.Action, subject: r.Subject}
	idx.byKey[key] = append(idx.byKey[key], &r)
	sortRules(idx.byKey[key])
}

// RelevantRules returns the exact-key rules plus the wildcard rules matching
// the pair, precedence-sorted together. Exact-key rules do not automatically
// win: priority, conditions and inversion govern the final order.
func (idx *RuleIndex) RelevantRules(action Action, subject SubjectType) []Rule {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	exact := idx.byKey[ruleKey{action: action, subject: subject}]
	merged := make([]*Rule, 0, len(exact)+len(idx.wildcard))
	merged = append(merged, exact...)
	for _, r := range idx.wildcard {
		if r.Matches(action, subject) {
			merged = append(merged, r)
		}
	}
	sortRules(merged)

	out := make([]Rule, 0, len(merged))
	for _, r := range merged {
		out = append(out, *r)
	}
	return out
}

// AllRules returns every registered rule in insertion order.
func (idx *RuleIndex) AllRules() []Rule {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Rule, 0, len(idx.all))
	for _, r := range idx.all {
		out = append(out, *r)
	}
	return out
}

// Len returns the number of registered rules.
func (idx *RuleIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.all)
}

// Clear drops every rule.
func (idx *RuleIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.clearLocked()
}

func (idx *RuleIndex) clearLocked() {
	idx.byKey = make(map[ruleKey][]*Rule)
	idx.wildcard = nil
	idx.all = nil
}

// Rebuild snapshots the current rules, clears the index and re-adds them,
// all under one lock. Callers that batch-replace a rule set get a fresh,
// consistently sorted structure with no torn intermediate state.
func (idx *RuleIndex) Rebuild() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	snapshot := make([]Rule, 0, len(idx.all))
	for _, r := range idx.all {
		snapshot = append(snapshot, *r)
	}
	idx.clearLocked()
	for _, r := range snapshot {
		idx.addLocked(r)
	}
}

// ============================================================================
// ABILITY ENGINE
// ============================================================================

// Decision describes how a check was resolved, for introspection and
// debugging. MatchedBy is nil when no rule applied (default deny).
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	MatchedBy *Rule     `json:"matched_by,omitempty"`
	Trace     []string  `json:"trace,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CacheConfig sizes the ristretto-backed decision cache for type-level
// checks.
type CacheConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	TTL         time.Duration
}

// Ability answers can/cannot questions over one rule set. It wraps a
// RuleIndex and an optional ConditionEvaluator; the index is the only
// mutable aggregate, so independent Ability instances share no state.
type Ability struct {
	index       *RuleIndex
	evaluator   ConditionEvaluator
	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc
	cache       *ristretto.Cache
	cacheTTL    time.Duration
}

// Option configures an Ability at construction time.
type Option func(*Ability) error

// WithEvaluator installs a condition evaluator. Passing nil removes the
// default one; conditioned rules are then skipped during checks.
func WithEvaluator(ev ConditionEvaluator) Option {
	return func(a *Ability) error {
		a.evaluator = ev
		return nil
	}
}

// WithDecisionCache enables a ristretto cache for type-only checks.
// Instance checks depend on attribute data with no stable cache identity,
// so they always evaluate.
func WithDecisionCache(cfg CacheConfig) Option {
	return func(a *Ability) error {
		if cfg.NumCounters <= 0 {
			cfg.NumCounters = 1e4
		}
		if cfg.MaxCost <= 0 {
			cfg.MaxCost = 1 << 20
		}
		if cfg.BufferItems <= 0 {
			cfg.BufferItems = 64
		}
		if cfg.TTL <= 0 {
			cfg.TTL = time.Second
		}
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: cfg.NumCounters,
			MaxCost:     cfg.MaxCost,
			BufferItems: cfg.BufferItems,
		})
		if err != nil {
			return fmt.Errorf("ability: decision cache: %w", err)
		}
		a.cache = cache
		a.cacheTTL = cfg.TTL
		return nil
	}
}

// New constructs an empty Ability. Without rules it denies everything.
func New(opts ...Option) (*Ability, error) {
	a := &Ability{
		index:       NewRuleIndex(),
		evaluator:   DefaultEvaluator{},
		logger:      logger.NewNullLogger(),
		traceIDFunc: logger.DefaultTraceID,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Can reports whether the action is permitted on the subject. Candidates
// come back from the index in precedence order and the first applicable
// rule wins; with no applicable rule the answer is false.
func (a *Ability) Can(action string, subject Subject) bool {
	act := NewAction(action)
	st := subject.SubjectType()

	_, typeOnly := subject.(SubjectRef)
	if typeOnly && a.cache != nil {
		if v, ok := a.cache.Get(cacheKey(act, st)); ok {
			if allowed, ok := v.(bool); ok {
				return allowed
			}
		}
	}

	allowed, matched := a.decide(act, subject, typeOnly)

	if typeOnly && a.cache != nil {
		a.cache.SetWithTTL(cacheKey(act, st), allowed, 1, a.cacheTTL)
	}
	a.logger.Debug("ability check",
		"trace_id", a.traceIDFunc(),
		"action", string(act),
		"subject", string(st),
		"allowed", allowed,
		"matched", matched != nil,
	)
	return allowed
}

// Cannot is the negation of Can.
func (a *Ability) Cannot(action string, subject Subject) bool {
	return !a.Can(action, subject)
}

func (a *Ability) decide(act Action, subject Subject, typeOnly bool) (bool, *Rule) {
	for _, r := range a.index.RelevantRules(act, subject.SubjectType()) {
		if !a.applies(r, subject, typeOnly) {
			continue
		}
		rule := r
		return !rule.Inverted, &rule
	}
	return false, nil
}

// applies decides whether a candidate rule governs this check. A rule with
// no conditions always applies. Conditioned rules need a registered
// evaluator and a satisfied condition tree; type-only checks treat
// conditions as satisfied.
func (a *Ability) applies(r Rule, subject Subject, typeOnly bool) bool {
	if !r.HasConditions() || typeOnly {
		return true
	}
	if a.evaluator == nil {
		return false
	}
	return a.evaluator.Evaluate(r.Conditions, subject)
}

// Explain runs the same decision walk as Can but returns the matched rule,
// its reason and a trace of every candidate considered.
func (a *Ability) Explain(action string, subject Subject) Decision {
	act := NewAction(action)
	st := subject.SubjectType()
	_, typeOnly := subject.(SubjectRef)

	dec := Decision{Timestamp: time.Now()}
	for _, r := range a.index.RelevantRules(act, st) {
		label := fmt.Sprintf("%s %s/%s priority=%d", effectLabel(r), r.Action, r.Subject, r.Priority)
		if !a.applies(r, subject, typeOnly) {
			dec.Trace = append(dec.Trace, "skip "+label+": conditions not satisfied")
			continue
		}
		dec.Trace = append(dec.Trace, "match "+label)
		rule := r
		dec.MatchedBy = &rule
		dec.Allowed = !rule.Inverted
		dec.Reason = rule.Reason
		return dec
	}
	dec.Trace = append(dec.Trace, "no applicable rule: default deny")
	return dec
}

func effectLabel(r Rule) string {
	if r.Inverted {
		return "cannot"
	}
	return "can"
}

// RulesFor returns every rule whose subject predicate matches the subject's
// type, ignoring actions and conditions. Introspection only.
func (a *Ability) RulesFor(subject Subject) []Rule {
	st := subject.SubjectType()
	var out []Rule
	for _, r := range a.index.AllRules() {
		if r.Subject.Matches(st) {
			out = append(out, r)
		}
	}
	return out
}

// PermittedFields computes the field set the action covers on the subject.
// A nil result means no field restriction applies (all fields); a non-nil,
// possibly empty set means field restrictions were in play. Non-inverted
// field lists union into the set, inverted ones subtract from it, and
// subtraction before any grant is a no-op. An unrestricted allow rule seen
// before any field-bearing rule short-circuits to nil.
func (a *Ability) PermittedFields(action string, subject Subject) map[string]struct{} {
	act := NewAction(action)
	_, typeOnly := subject.(SubjectRef)

	var acc map[string]struct{}
	seenFields := false
	for _, r := range a.index.RelevantRules(act, subject.SubjectType()) {
		if !a.applies(r, subject, typeOnly) {
			continue
		}
		if len(r.Fields) == 0 {
			if !r.Inverted && !seenFields {
				return nil
			}
			continue
		}
		seenFields = true
		if r.Inverted {
			for _, f := range r.Fields {
				delete(acc, f)
			}
			continue
		}
		if acc == nil {
			acc = make(map[string]struct{})
		}
		for _, f := range r.Fields {
			acc[f] = struct{}{}
		}
	}
	if !seenFields {
		return nil
	}
	if acc == nil {
		acc = make(map[string]struct{})
	}
	return acc
}

// CanField reports whether the action covers one specific field of the
// subject. Rule field lists may carry '*' wildcards over dot-separated
// paths.
func (a *Ability) CanField(action string, subject Subject, field string) bool {
	if !a.Can(action, subject) {
		return false
	}
	permitted := a.PermittedFields(action, subject)
	if permitted == nil {
		return true
	}
	for pattern := range permitted {
		if utils.MatchField(field, pattern) {
			return true
		}
	}
	return false
}

// ============================================================================
// MUTATION / SERIALIZATION FACADES
// ============================================================================

// AddRule registers one rule and invalidates cached decisions.
func (a *Ability) AddRule(rule Rule) {
	a.index.Add(rule)
	a.invalidate()
}

// AddRules registers a batch of rules and invalidates cached decisions.
func (a *Ability) AddRules(rules []Rule) {
	a.index.AddRules(rules)
	a.invalidate()
}

// Clear drops every rule and invalidates cached decisions.
func (a *Ability) Clear() {
	a.index.Clear()
	a.invalidate()
}

// Rules returns every registered rule in insertion order.
func (a *Ability) Rules() []Rule {
	return a.index.AllRules()
}

// Index exposes the underlying rule index for callers that need direct
// retrieval, e.g. RelevantRules ordering checks.
func (a *Ability) Index() *RuleIndex { return a.index }

func (a *Ability) invalidate() {
	if a.cache != nil {
		a.cache.Clear()
	}
}

// ToJSON encodes the rule set as a versioned PermissionSet envelope.
// Priority is intentionally not wire-preserved.
func (a *Ability) ToJSON() ([]byte, error) {
	coder := NewPermissionCoder()
	return coder.EncodeSet(&PermissionSet{
		Version:     WireVersion,
		Permissions: coder.Permissions(a.Rules()),
	})
}

// FromJSON decodes wire JSON (a PermissionSet envelope or a bare permission
// array) into a ready Ability.
func FromJSON(data []byte, opts ...Option) (*Ability, error) {
	coder := NewPermissionCoder()
	perms, err := coder.DecodePermissions(data)
	if err != nil {
		return nil, err
	}
	a, err := New(opts...)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		a.index.AddRules(coder.Rules(p))
	}
	return a, nil
}

func cacheKey(act Action, st SubjectType) string {
	return string(st) + "\x00" + string(act)
}
