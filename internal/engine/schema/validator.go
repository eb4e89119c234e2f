// internal/engine/schema/validator.go
package schema

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "application-engine/internal/common/errors"
)

// Scope selects the subset of the schema tree relevant to one state.
// Entries are dotted path prefixes; an empty scope validates the whole
// tree. A field required in a later state is legitimately absent in an
// earlier one because its path is outside that state's scope.
type Scope []string

// covers reports whether path falls fully inside the scope.
func (s Scope) covers(path string) bool {
	if len(s) == 0 {
		return true
	}
	for _, p := range s {
		if path == p || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

// descends reports whether path is an ancestor of a scoped subtree, so
// the walk must continue through it without enforcing its own rules.
func (s Scope) descends(path string) bool {
	if len(s) == 0 {
		return true
	}
	for _, p := range s {
		if strings.HasPrefix(p, path+".") {
			return true
		}
	}
	return false
}

// Result is the outcome of one validation pass.
type Result struct {
	Valid  bool
	Errors []apperrors.FieldError
}

// Validate checks answers against the schema tree restricted to scope.
// Errors are path-addressed (e.g. "accident.date") so the caller can
// attribute each failure to an exact field.
func Validate(answers map[string]interface{}, root *Node, scope Scope) *Result {
	var errs []apperrors.FieldError
	if root != nil {
		errs = validateObject(answers, root, "", scope)
	}
	return &Result{Valid: len(errs) == 0, Errors: errs}
}

func validateObject(value map[string]interface{}, node *Node, path string, scope Scope) []apperrors.FieldError {
	var errs []apperrors.FieldError

	// Unconditional requirements, enforced only inside the scope.
	for _, name := range node.Required {
		childPath := joinPath(path, name)
		if !scope.covers(childPath) {
			continue
		}
		if _, ok := value[name]; !ok {
			errs = append(errs, apperrors.FieldError{
				Path:    childPath,
				Code:    "REQUIRED_FIELD_MISSING",
				Message: "required field missing",
			})
		}
	}

	// Conditional requirements over sibling values.
	for name, field := range node.Fields {
		if field.RequiredIf == nil {
			continue
		}
		childPath := joinPath(path, name)
		if !scope.covers(childPath) {
			continue
		}
		if sibling, ok := value[field.RequiredIf.Sibling]; ok && looseEqual(sibling, field.RequiredIf.Equals) {
			if _, present := value[name]; !present {
				errs = append(errs, apperrors.FieldError{
					Path:    childPath,
					Code:    "CONDITIONAL_REQUIRED",
					Message: fmt.Sprintf("required because %s equals %v", field.RequiredIf.Sibling, field.RequiredIf.Equals),
				})
			}
		}
	}

	for name, fieldValue := range value {
		childPath := joinPath(path, name)
		fieldNode, known := node.Fields[name]
		if !known {
			if !node.Open && scope.covers(childPath) {
				errs = append(errs, apperrors.FieldError{
					Path:    childPath,
					Code:    "EXTRA_FIELD",
					Message: "field not allowed in schema",
				})
			}
			continue
		}
		if scope.covers(childPath) || scope.descends(childPath) {
			errs = append(errs, validateNode(fieldValue, fieldNode, childPath, scope)...)
		}
	}

	return errs
}

func validateNode(value interface{}, node *Node, path string, scope Scope) []apperrors.FieldError {
	if err := checkType(value, node.Kind); err != nil {
		// Type errors make refinements meaningless, so stop here.
		return []apperrors.FieldError{{Path: path, Code: "INVALID_TYPE", Message: err.Error()}}
	}

	switch node.Kind {
	case KindObject:
		obj, _ := value.(map[string]interface{})
		return validateObject(obj, node, path, scope)

	case KindArray:
		arr, _ := value.([]interface{})
		if node.Elem == nil {
			return nil
		}
		var errs []apperrors.FieldError
		for i, item := range arr {
			errs = append(errs, validateNode(item, node.Elem, fmt.Sprintf("%s[%d]", path, i), scope)...)
		}
		return errs

	default:
		if !scope.covers(path) {
			return nil
		}
		return validateLeaf(value, node, path)
	}
}

func validateLeaf(value interface{}, node *Node, path string) []apperrors.FieldError {
	var errs []apperrors.FieldError

	if strVal, ok := value.(string); ok {
		if node.MinLength != nil && len(strVal) < *node.MinLength {
			errs = append(errs, apperrors.FieldError{
				Path:    path,
				Code:    "MIN_LENGTH_VIOLATION",
				Message: fmt.Sprintf("value must be at least %d characters", *node.MinLength),
			})
		}
		if node.MaxLength != nil && len(strVal) > *node.MaxLength {
			errs = append(errs, apperrors.FieldError{
				Path:    path,
				Code:    "MAX_LENGTH_VIOLATION",
				Message: fmt.Sprintf("value must be at most %d characters", *node.MaxLength),
			})
		}
		if node.Pattern != "" {
			matched, err := regexp.MatchString(node.Pattern, strVal)
			if err != nil || !matched {
				errs = append(errs, apperrors.FieldError{
					Path:    path,
					Code:    "PATTERN_MISMATCH",
					Message: fmt.Sprintf("value must match pattern %s", node.Pattern),
				})
			}
		}
		if len(node.Enum) > 0 {
			found := false
			for _, enumVal := range node.Enum {
				if strVal == enumVal {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, apperrors.FieldError{
					Path:    path,
					Code:    "INVALID_ENUM_VALUE",
					Message: fmt.Sprintf("value must be one of %v", node.Enum),
				})
			}
		}
	}

	if numVal, ok := asFloat(value); ok {
		if node.Minimum != nil && numVal < *node.Minimum {
			errs = append(errs, apperrors.FieldError{
				Path:    path,
				Code:    "MINIMUM_VIOLATION",
				Message: fmt.Sprintf("value must be >= %v", *node.Minimum),
			})
		}
		if node.Maximum != nil && numVal > *node.Maximum {
			errs = append(errs, apperrors.FieldError{
				Path:    path,
				Code:    "MAXIMUM_VIOLATION",
				Message: fmt.Sprintf("value must be <= %v", *node.Maximum),
			})
		}
	}

	return errs
}

func checkType(value interface{}, kind Kind) error {
	switch kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case KindNumber:
		if _, ok := asFloat(value); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	case KindInteger:
		f, ok := asFloat(value)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("expected integer, got %v", value)
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case KindObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case KindArray:
		if _, ok := value.([]interface{}); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	}
	return nil
}

// asFloat normalizes the numeric types JSON decoding and Go literals
// both produce.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func looseEqual(a, b interface{}) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return a == b
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}
