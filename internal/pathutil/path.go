// Package pathutil implements dotted-path addressing into a tree built
// from map[string]any, []any, and scalar leaves — the Go stand-in for a
// plain-object graph.
package pathutil

import (
	"strconv"
	"strings"
)

// forbidden segments a path must never traverse, mirroring JS prototype
// pollution guards; Go has no prototype chain, but the same segment names
// are refused here so a payload crafted for a JS target behaves
// identically when replayed against this implementation.
func forbidden(segment string) bool {
	switch segment {
	case "__proto__", "constructor", "prototype":
		return true
	default:
		return false
	}
}

func split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get walks root along path's dotted segments, returning (nil, false) on
// any missing or forbidden segment. Numeric segments index into []any
// nodes; against a map[string]any node they are looked up as the literal
// string key.
func Get(root any, path string) (any, bool) {
	segments := split(path)
	current := root
	for _, seg := range segments {
		if forbidden(seg) {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set walks root along path's dotted segments, creating intermediate
// map[string]any nodes on demand, and writes value at the leaf. root must be a map[string]any (or
// nil, in which case a fresh map is created and returned); Set returns the
// possibly-new root so callers can handle the nil-root case uniformly.
func Set(root map[string]any, path string, value any) map[string]any {
	if root == nil {
		root = make(map[string]any)
	}
	segments := split(path)
	if len(segments) == 0 {
		return root
	}
	node := root
	for _, seg := range segments[:len(segments)-1] {
		if forbidden(seg) {
			return root
		}
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			node[seg] = next
		}
		node = next
	}
	last := segments[len(segments)-1]
	if forbidden(last) {
		return root
	}
	node[last] = value
	return root
}

// Remove prunes the leaf addressed by path from root, refusing to
// traverse __proto__, constructor, or prototype. A missing
// intermediate segment is a silent no-op.
func Remove(root map[string]any, path string) {
	if root == nil {
		return
	}
	segments := split(path)
	if len(segments) == 0 {
		return
	}
	node := root
	for _, seg := range segments[:len(segments)-1] {
		if forbidden(seg) {
			return
		}
		next, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = next
	}
	last := segments[len(segments)-1]
	if forbidden(last) {
		return
	}
	delete(node, last)
}
