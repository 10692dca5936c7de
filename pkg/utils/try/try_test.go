package try_test

import (
	"errors"
	"testing"

	"github.com/opst/fleetdeck/pkg/utils/try"
)

type fataler struct {
	fatal  [][]any
	helper int
}

func (f *fataler) Fatal(args ...any) {
	f.fatal = append(f.fatal, args)
}

func (f *fataler) Helper() {
	f.helper += 1
}

func TestTo(t *testing.T) {
	t.Run("when it has no error, it returns the value", func(t *testing.T) {
		f := &fataler{}
		if got := try.To(42, nil).OrFatal(f); got != 42 {
			t.Errorf("OrFatal = %d", got)
		}
		if len(f.fatal) != 0 || f.helper != 0 {
			t.Errorf("fataler is called: %+v", f)
		}
		if got := try.To(42, nil).OrDefault(7); got != 42 {
			t.Errorf("OrDefault = %d", got)
		}
		if v, err := try.To(42, nil).Get(); v != 42 || err != nil {
			t.Errorf("Get = (%d, %v)", v, err)
		}
	})

	t.Run("when it has an error, it calls Fatal with the error", func(t *testing.T) {
		expectedErr := errors.New("fake error")
		f := &fataler{}

		if got := try.To(42, expectedErr).OrFatal(f); got != 0 {
			t.Errorf("OrFatal = %d", got)
		}
		if len(f.fatal) != 1 || len(f.fatal[0]) != 1 || f.fatal[0][0] != expectedErr {
			t.Errorf("Fatal is called with %+v", f.fatal)
		}
		if f.helper != 1 {
			t.Errorf("Helper is called %d times", f.helper)
		}
		if got := try.To(42, expectedErr).OrDefault(7); got != 7 {
			t.Errorf("OrDefault = %d", got)
		}
		if v, err := try.To(42, expectedErr).Get(); v != 0 || !errors.Is(err, expectedErr) {
			t.Errorf("Get = (%d, %v)", v, err)
		}
	})
}
