// Package statesync implements the declarative sync/persist binding layer
// and the load/snapshot protocol on top of
// internal/reactive's cells.
package statesync

import (
	"strconv"

	"github.com/odin-rooms/roomsync/internal/reactive"
)

const deleteSentinel = "$delete"

// Engine accumulates path-keyed sync entries and shard-keyed persist
// entries from a tree of attached instances, flushing them to
// caller-supplied callbacks. The engine sets no timers: it flushes once
// at the end of Attach and once after every cell mutation it observes;
// callers wanting coarser delivery wrap onSync/onPersist (typically in
// an internal/roomkit.Throttle).
type Engine struct {
	pendingSync    *OrderedMap
	pendingPersist *OrderedMap
	onSync         func(*OrderedMap)
	onPersist      func(*OrderedMap)
	shardInstances map[string]any
	attaching      map[any]bool // instances currently on the active attachInstance call stack, cycle guard
}

// Handle is returned by Attach; Detach releases every subscription the
// attach created across the whole subtree.
type Handle struct {
	eng  *Engine
	root *attachNode
}

// Detach releases every subscription created by Attach, recursively.
func (h *Handle) Detach() {
	h.root.detach()
}

// ShardInstance returns the instance owning shardRoot ("." for the root
// instance, "field.key" for a nested class-typed collection entry) — an
// escape hatch for callers that want the full createStatesSnapshot-shaped
// payload for a shard rather than just the latest scalar value onPersist
// already carries.
func (h *Handle) ShardInstance(shardRoot string) (any, bool) {
	v, ok := h.eng.shardInstances[shardRoot]
	return v, ok
}

// Flush snapshots and clears both pending maps, invoking onSync/onPersist
// with the snapshot if it is non-empty. Safe to call with nothing
// pending (both callbacks are skipped).
func (e *Engine) Flush() {
	e.FlushSync()
	e.FlushPersist()
}

// FlushSync flushes only the pending sync batch.
func (e *Engine) FlushSync() {
	if e.pendingSync.Len() == 0 {
		return
	}
	batch := e.pendingSync.Clone()
	e.pendingSync.Clear()
	if e.onSync != nil {
		e.onSync(batch)
	}
}

// FlushPersist flushes only the pending persist batch.
func (e *Engine) FlushPersist() {
	if e.pendingPersist.Len() == 0 {
		return
	}
	batch := e.pendingPersist.Clone()
	e.pendingPersist.Clear()
	if e.onPersist != nil {
		e.onPersist(batch)
	}
}

// attachNode is one instance's worth of field subscriptions: the root
// instance, or a nested class-typed collection entry reached through an
// object/array field.
type attachNode struct {
	eng        *Engine
	instance   any
	pathPrefix string // "" for root, else "field." or "field.key." etc.
	shardRoot  string // "." for root, "field.key" for a nested entry
	unsubs     []func()
	children   map[string]*attachNode // keyed by the child's own path (for detach)
}

// Attach builds a metadata view of instance's class,
// subscribes to every annotated field, and immediately flushes the
// resulting initial aggregate batch through onSync and
// onPersist. Either callback may be nil.
func Attach(instance any, onSync func(*OrderedMap), onPersist func(*OrderedMap)) *Handle {
	eng := &Engine{
		pendingSync:    NewOrderedMap(),
		pendingPersist: NewOrderedMap(),
		onSync:         onSync,
		onPersist:      onPersist,
		shardInstances: make(map[string]any),
		attaching:      make(map[any]bool),
	}
	root := eng.attachInstance(instance, "", ".")
	eng.Flush()
	return &Handle{eng: eng, root: root}
}

// attachInstance subscribes instance's annotated fields, recursing into
// nested class-typed entries. If instance is already on the active
// attach call stack (a cyclic annotated graph), it refuses to re-enter:
// the returned node carries no subscriptions of its own, breaking the
// cycle instead of recursing forever.
func (e *Engine) attachInstance(instance any, pathPrefix, shardRoot string) *attachNode {
	node := &attachNode{
		eng:        e,
		instance:   instance,
		pathPrefix: pathPrefix,
		shardRoot:  shardRoot,
		children:   make(map[string]*attachNode),
	}
	if e.attaching[instance] {
		return node
	}
	e.attaching[instance] = true
	defer delete(e.attaching, instance)

	e.shardInstances[shardRoot] = instance

	meta := lookupMeta(elemType(instance))
	for _, f := range meta.fields {
		fv, ok := fieldValue(instance, f.Name)
		if !ok {
			continue
		}
		cell, ok := fv.Interface().(reactive.Cell)
		if !ok {
			continue // e.g. an ID field, which carries no cell
		}
		path := pathPrefix + f.Name
		node.subscribeField(f, cell, path)
	}
	return node
}

// subscribeField wires one field's cell into the engine. The first
// delivery on any subscription is always that cell's Init replay — for
// the root instance these coalesce into Attach's own explicit initial
// flush, and for a nested instance attached mid-mutation (via
// upsertEntry) they coalesce into whichever outer mutation triggered the
// attach. Every later delivery is a genuine, independent mutation, so it
// flushes on its own once handled — this is what turns "the core exposes
// raw callbacks, no hard-coded timers" into the literal one-call-per-
// mutation behavior the end-to-end scenarios describe; a caller wanting
// coarser batching wraps onSync/onPersist in a throttle (internal/roomkit)
// instead of calling them directly.
func (node *attachNode) subscribeField(f fieldMeta, cell reactive.Cell, path string) {
	first := true
	unsub := cell.Subscribe(func(c reactive.Change) {
		wasFirst := first
		first = false

		switch cell.Kind() {
		case reactive.KindArray:
			node.handleArrayChange(f, path, c)
		case reactive.KindObject:
			node.handleObjectChange(f, path, c)
		default: // scalar, computed, linked — all emit a single Value/Init
			node.emitScalar(f, path, c.Value)
		}

		if !wasFirst {
			node.eng.Flush()
		}
	})
	node.unsubs = append(node.unsubs, unsub)
}

func (node *attachNode) emitScalar(f fieldMeta, path string, value any) {
	out := value
	if f.Transform != nil {
		out = f.Transform(out)
	}
	if f.Broadcast {
		node.eng.pendingSync.Set(path, out)
	}
	if f.Persist {
		node.eng.pendingPersist.Set(node.shardRoot, value)
	}
}

// handleObjectChange processes one Change from an object-cell field.
func (node *attachNode) handleObjectChange(f fieldMeta, path string, c reactive.Change) {
	switch c.Type {
	case reactive.ChangeInit, reactive.ChangeReset:
		values, _ := c.Value.(map[string]any)
		node.resetContainer(f, path, values)
	case reactive.ChangeAdd, reactive.ChangeUpdate:
		node.upsertEntry(f, path, c.Key, c.Value)
	case reactive.ChangeRemove:
		node.removeEntry(f, path, c.Key)
	}
}

// handleArrayChange processes one Change from an array-cell field,
// rendering indices as their decimal string form.
func (node *attachNode) handleArrayChange(f fieldMeta, path string, c reactive.Change) {
	switch c.Type {
	case reactive.ChangeInit, reactive.ChangeReset:
		items := c.Items
		values := make(map[string]any, len(items))
		for i, v := range items {
			values[strconv.Itoa(i)] = v
		}
		node.resetContainer(f, path, values)
	case reactive.ChangeAdd, reactive.ChangeUpdate:
		for i, item := range c.Items {
			key := strconv.Itoa(c.Index + i)
			node.upsertEntry(f, path, key, item)
		}
	case reactive.ChangeRemove:
		for i := range c.Items {
			key := strconv.Itoa(c.Index + i)
			node.removeEntry(f, path, key)
		}
	}
}

// resetContainer implements the "container replacement" rule: if any entry is itself a
// class-typed instance, the container's own batch entry is the container's
// empty shape, emitted strictly before any child entry, and every plain
// entry is re-added individually since the empty shape omits them; when
// no entry is class-typed, the full current shape is the one entry.
func (node *attachNode) resetContainer(f fieldMeta, path string, values map[string]any) {
	node.detachChildrenUnder(path)

	hasClassEntries := false
	for _, v := range values {
		if isClassInstance(v) {
			hasClassEntries = true
			break
		}
	}

	if !hasClassEntries {
		node.eng.pendingSync.Set(path, values)
		return
	}

	node.eng.pendingSync.Set(path, map[string]any{})
	for key, v := range values {
		node.upsertEntry(f, path, key, v)
	}
}

func (node *attachNode) upsertEntry(f fieldMeta, path, key string, value any) {
	childPath := path + "." + key
	if isClassInstance(value) {
		child := node.eng.attachInstance(value, childPath+".", childPath)
		node.children[childPath] = child
		return
	}

	out := value
	if f.Transform != nil {
		out = f.Transform(out)
	}
	node.eng.pendingSync.Set(childPath, out)
	if f.Persist {
		node.eng.pendingPersist.Set(node.shardRoot, value)
	}
}

func (node *attachNode) removeEntry(f fieldMeta, path, key string) {
	childPath := path + "." + key
	if child, ok := node.children[childPath]; ok {
		child.detach()
		delete(node.children, childPath)
		delete(node.eng.shardInstances, childPath)
	}
	node.eng.pendingSync.Set(childPath, deleteSentinel)
}

// detachChildrenUnder releases every currently-attached class-typed child
// whose path starts with path+"." — used before a full container reset.
func (node *attachNode) detachChildrenUnder(path string) {
	prefix := path + "."
	for childPath, child := range node.children {
		if len(childPath) >= len(prefix) && childPath[:len(prefix)] == prefix {
			child.detach()
			delete(node.children, childPath)
			delete(node.eng.shardInstances, childPath)
		}
	}
}

func (node *attachNode) detach() {
	for _, unsub := range node.unsubs {
		unsub()
	}
	node.unsubs = nil
	for childPath, child := range node.children {
		child.detach()
		delete(node.eng.shardInstances, childPath)
	}
	node.children = make(map[string]*attachNode)
}
