package maps

// Ordered is a map remembering the order keys are set first.
//
// The zero value is not usable. Create with NewOrdered.
type Ordered[K comparable, V any] struct {
	keys []K
	m    map[K]V
}

// NewOrdered creates a new empty ordered map.
func NewOrdered[K comparable, V any]() *Ordered[K, V] {
	return &Ordered[K, V]{
		keys: []K{},
		m:    map[K]V{},
	}
}

// Set puts v for k.
//
// Setting to an existing key replaces the value but keeps its position.
func (m *Ordered[K, V]) Set(k K, v V) {
	if _, ok := m.m[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.m[k] = v
}

// Update replaces the value for k with the result of fn.
//
// When k is absent, fn receives the zero value and k is appended.
func (m *Ordered[K, V]) Update(k K, fn func(V) V) {
	m.Set(k, fn(m.m[k]))
}

// Keys returns keys in insertion order. The returned slice is a copy.
func (m *Ordered[K, V]) Keys() []K {
	return append([]K{}, m.keys...)
}

func (m *Ordered[K, V]) Len() int {
	return len(m.keys)
}

// Iter yields pairs in insertion order.
func (m *Ordered[K, V]) Iter() func(yield func(k K, v V) bool) {
	return func(yield func(k K, v V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.m[k]) {
				break
			}
		}
	}
}
