// Package util provides logging, counters and small shared containers.
package util

// OrderedMap is a keyed collection that remembers insertion order.
// It is not safe for concurrent use.
type OrderedMap[K comparable, V any] struct {
	keys  []K
	items map[K]V
}

// NewOrderedMap returns an empty map.
func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{items: make(map[K]V)}
}

// Get returns the value stored under k.
func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.items[k]
	return v, ok
}

// Set stores v under k. New keys go to the back; existing keys keep their
// position.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if _, ok := m.items[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.items[k] = v
}

// PushFront stores v under k. New keys go to the front; existing keys keep
// their position.
func (m *OrderedMap[K, V]) PushFront(k K, v V) {
	if _, ok := m.items[k]; !ok {
		m.keys = append([]K{k}, m.keys...)
	}
	m.items[k] = v
}

// Delete removes k and reports whether it was present.
func (m *OrderedMap[K, V]) Delete(k K) bool {
	if _, ok := m.items[k]; !ok {
		return false
	}
	delete(m.items, k)
	for i, key := range m.keys {
		if key == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of entries.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in order.
func (m *OrderedMap[K, V]) Keys() []K {
	return append([]K(nil), m.keys...)
}

// Range calls fn for each entry in order until fn returns false. fn may
// delete the entry it is visiting.
func (m *OrderedMap[K, V]) Range(fn func(K, V) bool) {
	for _, k := range m.Keys() {
		v, ok := m.items[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}
