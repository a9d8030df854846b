package statesync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/odin-rooms/roomsync/internal/reactive"
)

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func joinPath(segments []string) string {
	return strings.Join(segments, ".")
}

// Load applies payload to instance. payloadIsObject selects the
// object-form surface (payload mirrors instance's shape); the default,
// path-form surface treats payload as a flat path->value mapping applied
// in order.
//
// Failure semantics: an unknown path would, in a dynamic-property
// language, silently create a plain property; Go has no equivalent
// dynamic-property bag to create it on, so here the entry is simply
// dropped instead.
func Load(instance any, payload map[string]any, payloadIsObject bool) error {
	if payloadIsObject {
		return loadObjectForm(instance, payload)
	}
	// Path form has no inherent ordering guarantee from a Go map; callers
	// that need the insertion-order guarantee should use LoadOrdered with an *OrderedMap, or
	// LoadJSON with raw wire bytes.
	for path, value := range payload {
		if err := applyPathEntry(instance, path, value); err != nil {
			return err
		}
	}
	return nil
}

// LoadOrdered is Load's path-form surface, but walking entries in the
// order recorded by an OrderedMap (e.g. one produced by an Engine's
// onSync callback) rather than Go's unordered map iteration.
func LoadOrdered(instance any, payload *OrderedMap) error {
	var err error
	payload.Each(func(path string, value any) {
		if err != nil {
			return
		}
		err = applyPathEntry(instance, path, value)
	})
	return err
}

// LoadJSON decodes raw JSON wire bytes — a flat path->value object — and
// applies each entry in the SOURCE key order, using encoding/json's
// streaming Decoder.Token() rather than unmarshaling into
// map[string]any, which would discard key order.
func LoadJSON(instance any, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("statesync: decoding load payload: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("statesync: load payload must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("statesync: decoding load payload key: %w", err)
		}
		path, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("statesync: decoding load payload value for %q: %w", path, err)
		}
		if err := applyPathEntry(instance, path, value); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("statesync: decoding load payload: %w", err)
	}
	return nil
}

// applyPathEntry resolves a single (path, value) entry against instance,
// per its resolution steps 1-4.
func applyPathEntry(instance any, path string, value any) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}

	meta := lookupMeta(elemType(instance))
	fieldName := segments[0]
	f, ok := findField(meta, fieldName)
	if !ok {
		return nil // unknown path: silently ignored
	}

	fv, ok := fieldValue(instance, fieldName)
	if !ok {
		return nil
	}
	cell, ok := fv.Interface().(reactive.Cell)
	if !ok {
		return nil
	}

	rest := segments[1:]
	if len(rest) == 0 {
		if value == deleteSentinel {
			return nil // deleting a whole field has no defined target container
		}
		cell.Set(value)
		return nil
	}

	return applyIntoContainer(cell, f, rest, value)
}

// applyIntoContainer walks the remaining path segments into an
// object/array cell, constructing class-typed entries via the field's
// factory as needed, and finally writing or deleting the
// leaf (step 2/4).
func applyIntoContainer(cell reactive.Cell, f fieldMeta, segments []string, value any) error {
	key := segments[0]
	rest := segments[1:]

	switch c := cell.(type) {
	case *reactive.Object:
		if len(rest) == 0 {
			if value == deleteSentinel {
				c.DeleteKey(key)
				return nil
			}
			if f.ClassType != nil {
				return applyClassTypedLeaf(c, f, key, value)
			}
			c.SetKey(key, value)
			return nil
		}
		child, ok := c.Get(key)
		if !ok {
			if f.ClassType == nil {
				return nil
			}
			child = f.ClassType(key)
			c.SetKey(key, child)
		}
		return Load(child, map[string]any{joinPath(rest): value}, false)

	case *reactive.Array:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil
		}
		if len(rest) == 0 {
			if value == deleteSentinel {
				c.Splice(idx, 1)
				return nil
			}
			if idx < c.Len() {
				c.AssignAt(idx, value)
			} else {
				c.Splice(idx, 0, value)
			}
			return nil
		}
		values := c.Values()
		if idx >= len(values) || values[idx] == nil {
			if f.ClassType == nil {
				return nil
			}
			child := f.ClassType(key)
			if idx < len(values) {
				c.AssignAt(idx, child)
			} else {
				c.Splice(idx, 0, child)
			}
			values = c.Values()
		}
		return Load(values[idx], map[string]any{joinPath(rest): value}, false)

	default:
		return nil
	}
}

// applyClassTypedLeaf handles writing a bare class-typed key whose value
// is itself a full object-form sub-payload (object-form Load) rather
// than a single scalar.
func applyClassTypedLeaf(c *reactive.Object, f fieldMeta, key string, value any) error {
	sub, isSub := value.(map[string]any)
	if !isSub {
		c.SetKey(key, value)
		return nil
	}
	child, ok := c.Get(key)
	if !ok {
		child = f.ClassType(key)
		c.SetKey(key, child)
	}
	return loadObjectForm(child, sub)
}

// loadObjectForm implements the object-form surface: payload
// mirrors instance's shape; only keys matching an annotated field are
// applied.
func loadObjectForm(instance any, payload map[string]any) error {
	meta := lookupMeta(elemType(instance))
	for _, f := range meta.fields {
		value, present := payload[f.Name]
		if !present {
			continue
		}
		if err := applyObjectFormField(instance, f, value); err != nil {
			return err
		}
	}
	return nil
}

func applyObjectFormField(instance any, f fieldMeta, value any) error {
	fv, ok := fieldValue(instance, f.Name)
	if !ok {
		return nil
	}
	cell, ok := fv.Interface().(reactive.Cell)
	if !ok {
		return nil
	}

	switch c := cell.(type) {
	case *reactive.Object:
		sub, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		for key, sv := range sub {
			if sv == deleteSentinel {
				c.DeleteKey(key)
				continue
			}
			if f.ClassType != nil {
				if err := applyClassTypedLeaf(c, f, key, sv); err != nil {
					return err
				}
				continue
			}
			c.SetKey(key, sv)
		}
	case *reactive.Array:
		items, ok := value.([]any)
		if !ok {
			return nil
		}
		c.Set(items)
	default:
		cell.Set(value)
	}
	return nil
}

func findField(meta classMeta, name string) (fieldMeta, bool) {
	for _, f := range meta.fields {
		if f.Name == name {
			return f, true
		}
	}
	return fieldMeta{}, false
}
