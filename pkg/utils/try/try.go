// Package try shortens handling of (value, error) pairs in tests.
package try

// Fataler is something having Fatal, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either is a result of a call: a value, or an error.
type Either[T any] interface {
	// Get returns the pair as it was.
	Get() (T, error)

	// OrFatal returns the value. If it has an error, ftl.Fatal is called with it.
	//
	// When ftl has Helper() (like *testing.T), that is called before Fatal.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value, or d if it has an error.
	OrDefault(d T) T
}

// To wraps a result of a call.
//
//	conf := try.To(console.Load(path)).OrFatal(t)
func To[T any](value T, err error) Either[T] {
	return either[T]{value: value, err: err}
}

type either[T any] struct {
	value T
	err   error
}

func (e either[T]) Get() (T, error) {
	if e.err != nil {
		return *new(T), e.err
	}
	return e.value, nil
}

func (e either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}

func (e either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if h, ok := ftl.(interface{ Helper() }); ok {
		h.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}
