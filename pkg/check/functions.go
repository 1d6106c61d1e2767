// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package check

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// exprFunctions returns the helpers available to expression checks.
// expr-lang reserves "contains", "in" and "matches" as operators, so the
// function forms use other names.
func exprFunctions() map[string]any {
	return map[string]any{
		"has":       hasFn,
		"match":     matchFn,
		"includes":  includesFn,
		"notIn":     notInFn,
		"lowercase": lowercaseFn,
		"uppercase": uppercaseFn,
		"json":      jsonFn,
	}
}

// hasFn checks if a string contains a substring, a collection contains an
// element or a map contains a key.
// Usage: has(reply, "refund")
func hasFn(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("has requires exactly 2 arguments, got %d", len(args))
	}

	haystack, needle := args[0], args[1]
	if haystack == nil {
		return false, nil
	}

	v := reflect.ValueOf(haystack)
	switch v.Kind() {
	case reflect.String:
		substr, ok := needle.(string)
		if !ok {
			return false, nil
		}
		return strings.Contains(v.String(), substr), nil
	case reflect.Slice, reflect.Array:
		return sliceHas(v, needle), nil
	case reflect.Map:
		return mapHas(v, needle), nil
	default:
		return false, fmt.Errorf("has: unsupported type %T", haystack)
	}
}

// matchFn reports whether a regular expression matches anywhere in a string.
// Usage: match(reply, "^Order #[0-9]+")
func matchFn(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("match requires exactly 2 arguments, got %d", len(args))
	}

	str, ok := args[0].(string)
	if !ok {
		return false, fmt.Errorf("match: first argument must be a string, got %T", args[0])
	}
	pattern, ok := args[1].(string)
	if !ok {
		return false, fmt.Errorf("match: second argument must be a string pattern, got %T", args[1])
	}

	matched, err := regexp.MatchString(pattern, str)
	if err != nil {
		return false, fmt.Errorf("match: invalid regex pattern: %w", err)
	}
	return matched, nil
}

// includesFn checks if a value is in a collection.
// Usage: includes(metadata.tier, ["gold", "platinum"])
func includesFn(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("includes requires exactly 2 arguments, got %d", len(args))
	}

	needle, haystack := args[0], args[1]
	if haystack == nil {
		return false, nil
	}

	v := reflect.ValueOf(haystack)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return sliceHas(v, needle), nil
	case reflect.Map:
		return mapHas(v, needle), nil
	default:
		return false, fmt.Errorf("includes: second argument must be a collection, got %T", haystack)
	}
}

// notInFn is the negation of includes.
func notInFn(args ...any) (any, error) {
	result, err := includesFn(args...)
	if err != nil {
		return nil, err
	}
	return !result.(bool), nil
}

func lowercaseFn(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("lowercase requires exactly 1 argument, got %d", len(args))
	}
	str, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("lowercase: expected string, got %T", args[0])
	}
	return strings.ToLower(str), nil
}

func uppercaseFn(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("uppercase requires exactly 1 argument, got %d", len(args))
	}
	str, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("uppercase: expected string, got %T", args[0])
	}
	return strings.ToUpper(str), nil
}

// jsonFn parses a JSON string, typically a structured reply.
// Usage: json(reply).status == "ok"
func jsonFn(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("json requires exactly 1 argument, got %d", len(args))
	}
	str, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("json: expected string, got %T", args[0])
	}

	var result any
	if err := json.Unmarshal([]byte(str), &result); err != nil {
		return nil, fmt.Errorf("json: failed to parse JSON: %w", err)
	}
	return result, nil
}

// sliceHas compares elements by value; numbers and strings from different
// sources (YAML ints, JSON floats) compare by their string form.
func sliceHas(v reflect.Value, needle any) bool {
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i).Interface()
		if reflect.DeepEqual(elem, needle) || fmt.Sprint(elem) == fmt.Sprint(needle) {
			return true
		}
	}
	return false
}

func mapHas(v reflect.Value, needle any) bool {
	if needle == nil {
		return false
	}
	key := reflect.ValueOf(needle)
	if !key.Type().AssignableTo(v.Type().Key()) {
		return false
	}
	return v.MapIndex(key).IsValid()
}
