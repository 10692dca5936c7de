package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	apierr "github.com/opst/fleetdeck/pkg/api/types/errors"
)

func TestErrorMessage_UnmarshalJSON(t *testing.T) {
	for name, testcase := range map[string]struct {
		when string
		then apierr.ErrorMessage
	}{
		"console shape": {
			when: `{"reason": "bad request", "advice": "fix it", "validation": {"name": "required"}}`,
			then: apierr.ErrorMessage{
				Reason: "bad request", Advice: "fix it",
				Validation: map[string]string{"name": "required"},
			},
		},
		"backend shape": {
			when: `{"message": "Invalid template", "validationErrors": {"image": "too long"}}`,
			then: apierr.ErrorMessage{
				Reason:     "Invalid template",
				Validation: map[string]string{"image": "too long"},
			},
		},
		"reason wins over message": {
			when: `{"reason": "r", "message": "m"}`,
			then: apierr.ErrorMessage{Reason: "r"},
		},
	} {
		t.Run("when it is "+name+", it decodes", func(t *testing.T) {
			var actual apierr.ErrorMessage
			if err := json.Unmarshal([]byte(testcase.when), &actual); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(testcase.then, actual); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}

	t.Run("when neither reason nor message is given, it fails", func(t *testing.T) {
		var actual apierr.ErrorMessage
		if err := json.Unmarshal([]byte(`{"advice": "a"}`), &actual); err == nil {
			t.Error("no error")
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("when reason is empty, it uses the status text", func(t *testing.T) {
		cause := errors.New("fake")
		herr := apierr.BadRequest("id is required", cause)

		if herr.Code != http.StatusBadRequest {
			t.Errorf("code = %d", herr.Code)
		}
		em, ok := herr.Message.(apierr.ErrorMessage)
		if !ok {
			t.Fatalf("message is %T", herr.Message)
		}
		if em.Reason != "bad request" || em.Advice != "id is required" {
			t.Errorf("message = %+v", em)
		}
		if !errors.Is(herr, cause) {
			t.Error("cause is not wrapped")
		}
	})

	t.Run("it renders validations in order", func(t *testing.T) {
		em := apierr.ErrorMessage{
			Reason:     "invalid",
			Validation: map[string]string{"b": "2", "a": "1"},
		}
		want := "invalid\n - a: 1\n - b: 2"
		if got := em.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}
