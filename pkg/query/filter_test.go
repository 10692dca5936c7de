package query_test

import (
	"net/url"
	"testing"

	"github.com/opst/fleetdeck/pkg/query"
)

func TestBuild(t *testing.T) {
	type when struct {
		options *query.Options
	}
	type then struct {
		filter string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			t.Helper()
			actual := query.Build(when.options)
			if actual != then.filter {
				t.Errorf("filter:\n===actual===\n%s\n===expected===\n%s", actual, then.filter)
			}
		}
	}

	t.Run("when no occurrence is given, it joins clauses with and", theory(
		when{
			options: query.NewOptions("").
				Add("image", query.EqTo("nginx")).
				Add("name", query.EqTo("web")),
		},
		then{filter: "image eq 'nginx' and name eq 'web'"},
	))

	t.Run("when occurrence is ALL, it joins clauses with and", theory(
		when{
			options: query.NewOptions(query.All).
				Add("image", query.EqTo("nginx")).
				Add("name", query.EqTo("web")),
		},
		then{filter: "image eq 'nginx' and name eq 'web'"},
	))

	t.Run("when occurrence is ANY, it joins clauses with or", theory(
		when{
			options: query.NewOptions(query.Any).
				Add("name", query.EqTo("a")).
				Add("any", query.EqTo("*b*")),
		},
		then{filter: "name eq 'a' or any eq '*b*'"},
	))

	t.Run("it renders fields in insertion order, and clauses in each field in order", theory(
		when{
			options: query.NewOptions(query.Any).
				Add("z", query.EqTo("1"), query.NeTo("2")).
				Add("a", query.EqTo("3")).
				Add("z", query.EqTo("4")),
		},
		then{filter: "z eq '1' or z ne '2' or z eq '4' or a eq '3'"},
	))

	t.Run("when no clauses are given, it returns empty string", theory(
		when{options: query.NewOptions(query.Any).Add("empty")},
		then{filter: ""},
	))

	t.Run("when options is nil, it returns empty string", theory(
		when{options: nil},
		then{filter: ""},
	))

	t.Run("it is deterministic for the same input", func(t *testing.T) {
		opts := query.NewOptions(query.All).
			Add("b", query.EqTo("1")).
			Add("a", query.EqTo("2"))
		first := query.Build(opts)
		for range 10 {
			if again := query.Build(opts); again != first {
				t.Fatalf("unstable: %s != %s", again, first)
			}
		}
	})
}

func TestParseOccurrence(t *testing.T) {
	for in, want := range map[string]query.Occurrence{
		"ANY":   query.Any,
		"any":   query.Any,
		"ALL":   query.All,
		"":      query.All,
		"other": query.All,
	} {
		if got := query.ParseOccurrence(in); got != want {
			t.Errorf("ParseOccurrence(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSearchOptions_Key(t *testing.T) {
	t.Run("options with same terms have same key", func(t *testing.T) {
		a := query.SearchOptions{"name": {"web"}, "$category": {"containers"}}
		b := query.ParseSearchOptions(url.Values{"$category": {"containers"}, "name": {"web"}, "image": {""}})
		if a.Key() != b.Key() {
			t.Errorf("keys differ: %s vs %s", a.Key(), b.Key())
		}
	})

	t.Run("options with different terms have different keys", func(t *testing.T) {
		a := query.SearchOptions{"name": {"web"}}
		b := query.SearchOptions{"name": {"db"}}
		if a.Key() == b.Key() {
			t.Errorf("keys are same: %s", a.Key())
		}
	})

	t.Run("With does not modify the receiver", func(t *testing.T) {
		a := query.SearchOptions{"name": {"web"}}
		b := a.With(query.KeyCategory, query.CategoryContainers)
		if _, ok := a[query.KeyCategory]; ok {
			t.Errorf("receiver is modified: %v", a)
		}
		if b.Category() != query.CategoryContainers || b.Get("name") != "web" {
			t.Errorf("unexpected: %v", b)
		}
	})
}
