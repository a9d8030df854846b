package statesync

import "reflect"

// fieldMeta is the per-field metadata recorded by DefineClass. It
// is deliberately a struct, not a map, because Transform and ClassType
// must carry closures — a struct-tag design (the Go-idiomatic default
// for declarative metadata, as in `caarlos0/env`) cannot express that,
// which is why this package uses a builder instead.
type fieldMeta struct {
	Name      string
	Broadcast bool // true for Sync fields; false for Persist-only fields
	Persist   bool
	Transform func(value any) any
	ClassType func(key string) any
}

// classMeta is the resolved, flattened metadata for one Go type: its own
// registered fields in declaration order, plus every embedded (anonymous)
// struct field's metadata merged in ahead of its own (subclass
// inheritance "inherited by subclasses", modeled as embedding).
type classMeta struct {
	fields  []fieldMeta
	idField string
}

var registry = make(map[reflect.Type]*ClassBuilder)

// FieldOption configures a single Sync/Persist field declaration.
type FieldOption func(*fieldMeta)

// WithTransform installs a transform(value) -> value applied to every
// outbound value for this field, except the "$delete" sentinel.
func WithTransform(fn func(value any) any) FieldOption {
	return func(m *fieldMeta) { m.Transform = fn }
}

// WithClassType installs the factory used to reconstruct nested class
// instances held in this field's object/array cell: ClassType is always
// a factory `func(key string) any`, called with the entry's key to
// produce a fresh instance when Load encounters one it hasn't seen yet.
func WithClassType(factory func(key string) any) FieldOption {
	return func(m *fieldMeta) { m.ClassType = factory }
}

// WithPersist overrides the default persist=true for a Sync field. A
// Persist-declared field is always persist=true (that's the point of the
// annotation) and ignores this option.
func WithPersist(persist bool) FieldOption {
	return func(m *fieldMeta) { m.Persist = persist }
}

// ClassBuilder is a decorator-free metadata builder: Go has no
// decorator syntax, so field annotations are expressed as a fluent
// builder instead. DefineClass[T]() returns one bound to T's reflect.Type.
type ClassBuilder struct {
	typ    reflect.Type
	fields []fieldMeta
	idName string
}

// DefineClass registers (or re-opens) the sync metadata builder for T,
// a struct type whose annotated fields hold reactive cells. Call Sync /
// Persist / ID on the result to declare fields.
func DefineClass[T any]() *ClassBuilder {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if b, ok := registry[t]; ok {
		return b
	}
	b := &ClassBuilder{typ: t}
	registry[t] = b
	return b
}

// Sync marks field for broadcast AND persistence. persist
// defaults to true; pass WithPersist(false) to persist-suppress a
// broadcast field while keeping it synced.
func (b *ClassBuilder) Sync(field string, opts ...FieldOption) *ClassBuilder {
	m := fieldMeta{Name: field, Broadcast: true, Persist: true}
	for _, opt := range opts {
		opt(&m)
	}
	b.fields = append(b.fields, m)
	return b
}

// Persist marks field for persistence only; onSync never sees it.
func (b *ClassBuilder) Persist(field string, opts ...FieldOption) *ClassBuilder {
	m := fieldMeta{Name: field, Broadcast: false, Persist: true}
	for _, opt := range opts {
		opt(&m)
	}
	m.Persist = true
	b.fields = append(b.fields, m)
	return b
}

// ID marks field as the instance's identifier within a parent collection
//. It carries no cell subscription of its own; it is read
// via reflection by IdentityOf.
func (b *ClassBuilder) ID(field string) *ClassBuilder {
	b.idName = field
	return b
}

// IdentityOf returns the value of instance's ID-annotated field, if one
// was declared for its type.
func IdentityOf(instance any) (string, bool) {
	meta := lookupMeta(elemType(instance))
	if meta.idField == "" {
		return "", false
	}
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	fv := v.FieldByName(meta.idField)
	if !fv.IsValid() {
		return "", false
	}
	s, ok := fv.Interface().(string)
	return s, ok
}

func elemType(instance any) reflect.Type {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// isClassInstance reports whether v's type has been registered via
// DefineClass — i.e. whether v is a nested class-typed entry, per 
// "Nested class propagation".
func isClassInstance(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Kind() != reflect.Ptr {
		return false
	}
	_, ok := registry[t.Elem()]
	return ok
}

// lookupMeta flattens t's own registered fields with every anonymous
// embedded struct field's metadata, embedded fields first so a subclass's
// own declarations can extend (not override — field names don't collide
// across unrelated classes) its base's.
func lookupMeta(t reflect.Type) classMeta {
	var out classMeta

	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous {
				continue
			}
			embedded := f.Type
			if embedded.Kind() == reflect.Ptr {
				embedded = embedded.Elem()
			}
			if embedded.Kind() != reflect.Struct {
				continue
			}
			base := lookupMeta(embedded)
			out.fields = append(out.fields, base.fields...)
			if base.idField != "" {
				out.idField = base.idField
			}
		}
	}

	if b, ok := registry[t]; ok {
		out.fields = append(out.fields, b.fields...)
		if b.idName != "" {
			out.idField = b.idName
		}
	}

	return out
}

// fieldValue reads instance's field named name via reflection.
func fieldValue(instance any, name string) (reflect.Value, bool) {
	v := reflect.ValueOf(instance)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	fv := v.FieldByName(name)
	if !fv.IsValid() {
		return reflect.Value{}, false
	}
	return fv, true
}
