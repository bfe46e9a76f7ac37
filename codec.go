package ability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// ERRORS
// ============================================================================

// ErrDecodingFailed wraps malformed JSON or schema mismatches during wire
// decoding. Decode errors always propagate to the caller.
var ErrDecodingFailed = errors.New("ability: decoding failed")

// UnsupportedVersionError aborts decoding of a PermissionSet whose version
// this build does not recognize.
type UnsupportedVersionError struct {
	Version string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("ability: unsupported permission set version %q", e.Version)
}

func decodeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrDecodingFailed, err)
}

// ============================================================================
// WIRE DTOS
// ============================================================================

// WireVersion is the permission set version this build emits.
const WireVersion = "1.0"

var supportedVersions = map[string]struct{}{
	"1":   {},
	"1.0": {},
}

// Permission is the wire DTO for one grant/deny statement. Action and
// subject may each carry several values; decoding expands the cartesian
// product into one Rule per pair. Priority never appears on the wire.
type Permission struct {
	Actions    []string
	Subjects   []string
	Conditions Conditions
	Fields     []string
	Inverted   bool
	Reason     string
}

// wireValue builds the keyed-object wire form. Single-element lists encode
// as scalars, empty optional fields are omitted, and inverted is omitted
// when false.
func (p Permission) wireValue() map[string]any {
	out := map[string]any{"action": scalarOrList(p.Actions)}
	if len(p.Subjects) > 0 {
		out["subject"] = scalarOrList(p.Subjects)
	}
	if p.Conditions != nil {
		out["conditions"] = p.Conditions.Interface()
	}
	if len(p.Fields) > 0 {
		out["fields"] = scalarOrList(p.Fields)
	}
	if p.Inverted {
		out["inverted"] = true
	}
	if p.Reason != "" {
		out["reason"] = p.Reason
	}
	return out
}

func (p Permission) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wireValue())
}

func (p *Permission) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return decodeErr(err)
	}
	decoded, err := permissionFromAny(raw)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

func (p Permission) MarshalYAML() (any, error) {
	return p.wireValue(), nil
}

func (p *Permission) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return decodeErr(err)
	}
	decoded, err := permissionFromAny(raw)
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

func permissionFromAny(raw map[string]any) (Permission, error) {
	var p Permission
	actions, err := stringList(raw["action"])
	if err != nil {
		return p, fmt.Errorf("%w: permission action: %v", ErrDecodingFailed, err)
	}
	if len(actions) == 0 {
		return p, fmt.Errorf("%w: permission has no action", ErrDecodingFailed)
	}
	p.Actions = actions

	if sub, ok := raw["subject"]; ok && sub != nil {
		subjects, err := stringList(sub)
		if err != nil {
			return p, fmt.Errorf("%w: permission subject: %v", ErrDecodingFailed, err)
		}
		p.Subjects = subjects
	}
	if conds, ok := raw["conditions"]; ok && conds != nil {
		obj, ok := conds.(map[string]any)
		if !ok {
			return p, fmt.Errorf("%w: permission conditions must be an object", ErrDecodingFailed)
		}
		p.Conditions = ConditionsFromAny(obj)
	}
	if fields, ok := raw["fields"]; ok && fields != nil {
		list, err := stringList(fields)
		if err != nil {
			return p, fmt.Errorf("%w: permission fields: %v", ErrDecodingFailed, err)
		}
		p.Fields = list
	}
	if inv, ok := raw["inverted"]; ok && inv != nil {
		b, ok := inv.(bool)
		if !ok {
			return p, fmt.Errorf("%w: permission inverted must be a bool", ErrDecodingFailed)
		}
		p.Inverted = b
	}
	if reason, ok := raw["reason"]; ok && reason != nil {
		s, ok := reason.(string)
		if !ok {
			return p, fmt.Errorf("%w: permission reason must be a string", ErrDecodingFailed)
		}
		p.Reason = s
	}
	return p, nil
}

// stringList normalizes a scalar-or-array wire value to a string slice.
func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			s, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", it)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return t, nil
	}
	return nil, fmt.Errorf("expected string or array of strings, got %T", v)
}

func scalarOrList(items []string) any {
	if len(items) == 1 {
		return items[0]
	}
	return items
}

// PermissionSet is the versioned wire envelope.
type PermissionSet struct {
	Version     string         `json:"version" yaml:"version"`
	Permissions []Permission   `json:"permissions" yaml:"permissions"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ============================================================================
// PERMISSION CODER
// ============================================================================

// PermissionCoder maps between the wire formats and in-memory Rule lists.
type PermissionCoder struct{}

func NewPermissionCoder() *PermissionCoder { return &PermissionCoder{} }

// Rules expands one permission into rules: the cartesian product of its
// actions and subjects, one rule per pair. A claim-based permission (no
// subject) yields rules against "all". Priority always decodes to zero.
func (c *PermissionCoder) Rules(p Permission) []Rule {
	subjects := p.Subjects
	if len(subjects) == 0 {
		subjects = []string{string(SubjectAll)}
	}
	rules := make([]Rule, 0, len(p.Actions)*len(subjects))
	for _, action := range p.Actions {
		for _, subject := range subjects {
			rules = append(rules, Rule{
				Action:     NewAction(action),
				Subject:    NewSubjectType(subject),
				Conditions: p.Conditions,
				Fields:     p.Fields,
				Inverted:   p.Inverted,
				Reason:     p.Reason,
			})
		}
	}
	return rules
}

// Permission converts one rule back to its wire DTO.
func (c *PermissionCoder) Permission(r Rule) Permission {
	r = r.normalize()
	return Permission{
		Actions:    []string{string(r.Action)},
		Subjects:   []string{string(r.Subject)},
		Conditions: r.Conditions,
		Fields:     r.Fields,
		Inverted:   r.Inverted,
		Reason:     r.Reason,
	}
}

// Permissions converts a rule list one-to-one.
func (c *PermissionCoder) Permissions(rules []Rule) []Permission {
	out := make([]Permission, 0, len(rules))
	for _, r := range rules {
		out = append(out, c.Permission(r))
	}
	return out
}

// DecodeSet decodes a PermissionSet envelope, rejecting unknown versions.
func (c *PermissionCoder) DecodeSet(data []byte) (*PermissionSet, error) {
	var set PermissionSet
	if err := json.Unmarshal(data, &set); err != nil {
		if errors.Is(err, ErrDecodingFailed) {
			return nil, err
		}
		return nil, decodeErr(err)
	}
	if _, ok := supportedVersions[set.Version]; !ok {
		return nil, &UnsupportedVersionError{Version: set.Version}
	}
	return &set, nil
}

// EncodeSet encodes a PermissionSet envelope.
func (c *PermissionCoder) EncodeSet(set *PermissionSet) ([]byte, error) {
	return json.Marshal(set)
}

// DecodePermissions accepts either a bare permission array or a versioned
// envelope and returns the permission list.
func (c *PermissionCoder) DecodePermissions(data []byte) ([]Permission, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecodingFailed)
	}
	if trimmed[0] == '[' {
		var perms []Permission
		if err := json.Unmarshal(trimmed, &perms); err != nil {
			if errors.Is(err, ErrDecodingFailed) {
				return nil, err
			}
			return nil, decodeErr(err)
		}
		return perms, nil
	}
	set, err := c.DecodeSet(trimmed)
	if err != nil {
		return nil, err
	}
	return set.Permissions, nil
}

// DecodeRules is DecodePermissions plus cartesian expansion.
func (c *PermissionCoder) DecodeRules(data []byte) ([]Rule, error) {
	perms, err := c.DecodePermissions(data)
	if err != nil {
		return nil, err
	}
	var rules []Rule
	for _, p := range perms {
		rules = append(rules, c.Rules(p)...)
	}
	return rules, nil
}

// ============================================================================
// COMPACT ARRAY FORM
// ============================================================================

// EncodeCompact writes the positional array form
// [action, subject, conditions, fields, inverted, reason], trimming the
// longest empty suffix.
func (c *PermissionCoder) EncodeCompact(p Permission) ([]byte, error) {
	elems := []any{
		scalarOrList(p.Actions),
		nil, nil, nil, false, "",
	}
	if len(p.Subjects) > 0 {
		elems[1] = scalarOrList(p.Subjects)
	}
	if p.Conditions != nil {
		elems[2] = p.Conditions.Interface()
	}
	if len(p.Fields) > 0 {
		elems[3] = scalarOrList(p.Fields)
	}
	elems[4] = p.Inverted
	elems[5] = p.Reason

	last := len(elems) - 1
	for last > 0 && emptyCompactElem(elems[last]) {
		last--
	}
	return json.Marshal(elems[:last+1])
}

func emptyCompactElem(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	}
	return false
}

// DecodeCompact reads the positional array form; any suffix may be omitted.
func (c *PermissionCoder) DecodeCompact(data []byte) (Permission, error) {
	var p Permission
	var elems []any
	if err := json.Unmarshal(data, &elems); err != nil {
		return p, decodeErr(err)
	}
	if len(elems) == 0 {
		return p, fmt.Errorf("%w: compact permission is empty", ErrDecodingFailed)
	}
	raw := map[string]any{"action": elems[0]}
	if len(elems) > 1 && elems[1] != nil {
		raw["subject"] = elems[1]
	}
	if len(elems) > 2 && elems[2] != nil {
		raw["conditions"] = elems[2]
	}
	if len(elems) > 3 && elems[3] != nil {
		raw["fields"] = elems[3]
	}
	if len(elems) > 4 && elems[4] != nil {
		raw["inverted"] = elems[4]
	}
	if len(elems) > 5 && elems[5] != nil {
		raw["reason"] = elems[5]
	}
	return permissionFromAny(raw)
}
