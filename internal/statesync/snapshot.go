package statesync

import (
	"reflect"
	"strconv"
	"time"

	"github.com/odin-rooms/roomsync/internal/reactive"
)

// CreateStatesSnapshot returns a plain mapping of field name to current
// cell value, restricted to primitive scalars, excluding persist:false
// fields and any field whose current value is itself an object or array
//. It is the function that produces a persistence shard's stored
// value.
func CreateStatesSnapshot(instance any) map[string]any {
	out := make(map[string]any)
	meta := lookupMeta(elemType(instance))
	for _, f := range meta.fields {
		if !f.Persist {
			continue
		}
		fv, ok := fieldValue(instance, f.Name)
		if !ok {
			continue
		}
		cell, ok := fv.Interface().(reactive.Cell)
		if !ok {
			continue
		}
		if cell.Kind() != reactive.KindScalar {
			continue
		}
		switch value := cell.Current(); value.(type) {
		case nil, bool, string, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64, float32, float64:
			out[f.Name] = value
		}
	}
	return out
}

// SnapshotFilter decides whether to include value at path in a deep
// snapshot; returning false omits it.
type SnapshotFilter func(value any, path string) bool

// DeepSnapshotOptions configures CreateStatesSnapshotDeep.
type DeepSnapshotOptions struct {
	Filter SnapshotFilter
}

// CreateStatesSnapshotDeep recursively captures every persist-eligible
// annotated field, descending into object/array contents and, for
// class-typed entries, into their own annotated fields only.
// time.Time values are rendered as RFC3339 strings, the Go analogue of
// a JSON Date-to-ISO-8601 conversion.
func CreateStatesSnapshotDeep(instance any, opts DeepSnapshotOptions) map[string]any {
	visited := make(map[any]bool)
	return snapshotDeep(instance, "", opts, visited)
}

func snapshotDeep(instance any, pathPrefix string, opts DeepSnapshotOptions, visited map[any]bool) map[string]any {
	if visited[instance] {
		return map[string]any{} // cycle guard/
	}
	visited[instance] = true
	defer delete(visited, instance)

	out := make(map[string]any)
	meta := lookupMeta(elemType(instance))
	for _, f := range meta.fields {
		if !f.Persist {
			continue
		}
		fv, ok := fieldValue(instance, f.Name)
		if !ok {
			continue
		}
		cell, ok := fv.Interface().(reactive.Cell)
		if !ok {
			continue
		}
		path := pathPrefix + f.Name
		value, skip := snapshotValue(cell, path, opts, visited)
		if skip {
			continue
		}
		if opts.Filter != nil && !opts.Filter(value, path) {
			continue
		}
		out[f.Name] = value
	}
	return out
}

// snapshotValue renders one cell's content; the bool result reports
// whether the caller should omit it entirely (a function value has no
// JSON-compatible form, so it is dropped, not kept as a null
// placeholder).
func snapshotValue(cell reactive.Cell, path string, opts DeepSnapshotOptions, visited map[any]bool) (any, bool) {
	switch c := cell.(type) {
	case *reactive.Array:
		items := c.Values()
		out := make([]any, 0, len(items))
		for i, item := range items {
			v, skip := snapshotEntry(item, path, i, opts, visited)
			if skip {
				continue
			}
			out = append(out, v)
		}
		return out, false
	case *reactive.Object:
		values := c.Values()
		out := make(map[string]any, len(values))
		for key, v := range values {
			rv, skip := snapshotEntryKeyed(v, path, key, opts, visited)
			if skip {
				continue
			}
			out[key] = rv
		}
		return out, false
	default:
		return renderScalar(cell.Current())
	}
}

func snapshotEntry(value any, parentPath string, index int, opts DeepSnapshotOptions, visited map[any]bool) (any, bool) {
	return snapshotEntryKeyed(value, parentPath, strconv.Itoa(index), opts, visited)
}

func snapshotEntryKeyed(value any, parentPath, key string, opts DeepSnapshotOptions, visited map[any]bool) (any, bool) {
	if isClassInstance(value) {
		return snapshotDeep(value, parentPath+"."+key+".", opts, visited), false
	}
	return renderScalar(value)
}

// renderScalar converts Date-shaped values (time.Time) to RFC3339 and
// reports skip=true for function values of any signature, which have no
// JSON-compatible form and so are omitted rather than kept as null. Map
// and slice values are returned as they are.
func renderScalar(v any) (any, bool) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339), false
	default:
		if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
			return nil, true
		}
		return val, false
	}
}
