package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

// Condition is one predicate of a rule evaluated against case attributes.
// A condition on an attribute the case does not carry is false.
type Condition interface {
	Field() string
	Matches(attrs models.CaseAttributes) bool
}

// FieldEquals compares an attribute with a scalar, case-insensitively for
// strings and numerically when both sides are numbers.
type FieldEquals struct {
	Key    string
	Value  string
	Number *float64
}

// Field implements Condition.
func (c FieldEquals) Field() string { return c.Key }

// Matches implements Condition.
func (c FieldEquals) Matches(attrs models.CaseAttributes) bool {
	actual, ok := attrs.Lookup(c.Key)
	if !ok {
		return false
	}
	if c.Number != nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(actual), 64); err == nil {
			return n == *c.Number
		}
	}
	return strings.EqualFold(strings.TrimSpace(actual), c.Value)
}

// FieldIn holds when the attribute equals any of Values. Negate inverts the
// membership test but still requires the attribute to be present.
type FieldIn struct {
	Key    string
	Values []string
	Negate bool
}

// Field implements Condition.
func (c FieldIn) Field() string { return c.Key }

// Matches implements Condition.
func (c FieldIn) Matches(attrs models.CaseAttributes) bool {
	actual, ok := attrs.Lookup(c.Key)
	if !ok {
		return false
	}
	actual = strings.TrimSpace(actual)
	found := false
	for _, v := range c.Values {
		if strings.EqualFold(actual, v) {
			found = true
			break
		}
	}
	return found != c.Negate
}

// NumericThreshold holds when every bound holds for the numeric attribute.
type NumericThreshold struct {
	Key    string
	Bounds map[string]float64
}

// Field implements Condition.
func (c NumericThreshold) Field() string { return c.Key }

// Matches implements Condition.
func (c NumericThreshold) Matches(attrs models.CaseAttributes) bool {
	actual, ok := attrs.Lookup(c.Key)
	if !ok {
		return false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
	if err != nil {
		return false
	}
	for op, bound := range c.Bounds {
		var holds bool
		switch op {
		case "gt":
			holds = n > bound
		case "gte":
			holds = n >= bound
		case "lt":
			holds = n < bound
		case "lte":
			holds = n <= bound
		case "eq":
			holds = n == bound
		case "ne":
			holds = n != bound
		}
		if !holds {
			return false
		}
	}
	return true
}

// GenericMatch compares the stringified predicate with the attribute.
type GenericMatch struct {
	Key   string
	Value string
}

// Field implements Condition.
func (c GenericMatch) Field() string { return c.Key }

// Matches implements Condition.
func (c GenericMatch) Matches(attrs models.CaseAttributes) bool {
	actual, ok := attrs.Lookup(c.Key)
	if !ok {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(actual), c.Value)
}

// Conditions is the parsed predicate set of a rule. An empty set always holds.
type Conditions []Condition

// Matches reports whether every condition holds.
func (cs Conditions) Matches(attrs models.CaseAttributes) bool {
	for _, c := range cs {
		if !c.Matches(attrs) {
			return false
		}
	}
	return true
}

var thresholdOperators = map[string]struct{}{
	"gt": {}, "gte": {}, "lt": {}, "lte": {}, "eq": {}, "ne": {},
}

// ParseConditions turns a stored condition map into typed predicates.
func ParseConditions(raw []byte) (Conditions, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var values map[string]interface{}
	if err := decoder.Decode(&values); err != nil {
		return nil, ruleEvaluationError("conditions must be a JSON object: %v", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make(Conditions, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			return nil, ruleEvaluationError("condition field name is empty")
		}
		parsed, err := parseCondition(key, values[key])
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, parsed...)
	}
	return conditions, nil
}

func parseCondition(key string, value interface{}) ([]Condition, error) {
	switch v := value.(type) {
	case string:
		return []Condition{FieldEquals{Key: key, Value: strings.TrimSpace(v)}}, nil
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return nil, ruleEvaluationError("condition %q: invalid number %s", key, v.String())
		}
		return []Condition{FieldEquals{Key: key, Value: v.String(), Number: &n}}, nil
	case bool:
		return []Condition{GenericMatch{Key: key, Value: strconv.FormatBool(v)}}, nil
	case []interface{}:
		values, err := scalarList(key, v)
		if err != nil {
			return nil, err
		}
		return []Condition{FieldIn{Key: key, Values: values}}, nil
	case map[string]interface{}:
		return parseOperatorObject(key, v)
	case nil:
		return nil, ruleEvaluationError("condition %q has a null predicate", key)
	}
	return nil, ruleEvaluationError("condition %q has an unsupported predicate", key)
}

func parseOperatorObject(key string, ops map[string]interface{}) ([]Condition, error) {
	if len(ops) == 0 {
		return nil, ruleEvaluationError("condition %q has an empty operator object", key)
	}

	var (
		conditions []Condition
		bounds     map[string]float64
	)
	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	for _, op := range names {
		operand := ops[op]
		switch {
		case op == "in" || op == "notIn":
			list, ok := operand.([]interface{})
			if !ok {
				return nil, ruleEvaluationError("condition %q: %s expects an array", key, op)
			}
			values, err := scalarList(key, list)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, FieldIn{Key: key, Values: values, Negate: op == "notIn"})
		default:
			if _, known := thresholdOperators[op]; !known {
				return nil, ruleEvaluationError("condition %q: unknown operator %q", key, op)
			}
			num, ok := operand.(json.Number)
			if !ok {
				return nil, ruleEvaluationError("condition %q: %s expects a number", key, op)
			}
			f, err := num.Float64()
			if err != nil {
				return nil, ruleEvaluationError("condition %q: %s expects a number", key, op)
			}
			if bounds == nil {
				bounds = make(map[string]float64)
			}
			bounds[op] = f
		}
	}
	if bounds != nil {
		conditions = append(conditions, NumericThreshold{Key: key, Bounds: bounds})
	}
	return conditions, nil
}

func scalarList(key string, list []interface{}) ([]string, error) {
	if len(list) == 0 {
		return nil, ruleEvaluationError("condition %q has an empty list", key)
	}
	values := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			values = append(values, strings.TrimSpace(v))
		case json.Number:
			values = append(values, v.String())
		case bool:
			values = append(values, strconv.FormatBool(v))
		default:
			return nil, ruleEvaluationError("condition %q: list items must be scalars", key)
		}
	}
	return values, nil
}

// ParseActions decodes the typed effects of a rule. Unknown keys are ignored.
func ParseActions(raw []byte) (models.RuleActions, error) {
	var actions models.RuleActions
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return actions, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return actions, ruleEvaluationError("actions must be a JSON object: %v", err)
	}

	if rawWeight, ok := fields["workloadWeight"]; ok {
		var weight float64
		if err := json.Unmarshal(rawWeight, &weight); err != nil {
			return actions, ruleEvaluationError("action workloadWeight must be a number")
		}
		if weight <= 0 {
			return actions, ruleEvaluationError("action workloadWeight must be positive")
		}
		actions.WorkloadWeight = &weight
	}
	if rawRole, ok := fields["roleType"]; ok {
		var role string
		if err := json.Unmarshal(rawRole, &role); err != nil {
			return actions, ruleEvaluationError("action roleType must be a string")
		}
		role = strings.ToUpper(strings.TrimSpace(role))
		if !models.RoleType(role).Valid() {
			return actions, ruleEvaluationError("action roleType %q is not a known role", role)
		}
		actions.RoleType = &role
	}
	if rawTarget, ok := fields["assignToUserId"]; ok {
		var target string
		if err := json.Unmarshal(rawTarget, &target); err != nil || strings.TrimSpace(target) == "" {
			return actions, ruleEvaluationError("action assignToUserId must be a non-empty string")
		}
		target = strings.TrimSpace(target)
		actions.AssignToUserID = &target
	}
	if rawNotes, ok := fields["notes"]; ok {
		var notes string
		if err := json.Unmarshal(rawNotes, &notes); err != nil {
			return actions, ruleEvaluationError("action notes must be a string")
		}
		actions.Notes = &notes
	}
	return actions, nil
}

func ruleEvaluationError(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrRuleEvaluation, fmt.Sprintf(format, args...))
}
