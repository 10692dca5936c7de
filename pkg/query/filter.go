// Package query builds OData-style filter expressions the backend understands.
package query

import (
	"strings"

	"github.com/opst/fleetdeck/pkg/utils/maps"
)

type Op string

const (
	Eq Op = "eq"
	Ne Op = "ne"
)

// Occurrence selects how clauses are combined.
type Occurrence string

const (
	All Occurrence = "ALL"
	Any Occurrence = "ANY"
)

// ParseOccurrence reads occurrence case-insensitively. Unknown values are ALL.
func ParseOccurrence(s string) Occurrence {
	if strings.EqualFold(s, string(Any)) {
		return Any
	}
	return All
}

// field name matching any field of documents.
const AllFields = "ALL_FIELDS"

type Clause struct {
	Value string `json:"val"`
	Op    Op     `json:"op"`
}

func EqTo(v string) Clause {
	return Clause{Value: v, Op: Eq}
}

func NeTo(v string) Clause {
	return Clause{Value: v, Op: Ne}
}

// Options is the input of Build: clauses per field, in insertion order, and the occurrence.
type Options struct {
	Occurrence Occurrence
	fields     *maps.Ordered[string, []Clause]
}

func NewOptions(occurrence Occurrence) *Options {
	return &Options{Occurrence: occurrence, fields: maps.NewOrdered[string, []Clause]()}
}

// Add appends clauses to the field.
//
// Fields keep the order they are added first.
func (o *Options) Add(field string, clauses ...Clause) *Options {
	if len(clauses) == 0 {
		return o
	}
	o.fields.Update(field, func(cs []Clause) []Clause {
		return append(cs, clauses...)
	})
	return o
}

// Fields returns field names in insertion order.
func (o *Options) Fields() []string {
	return o.fields.Keys()
}

// Build renders the filter expression, like `image eq 'nginx' and name eq 'web'`.
//
// Clauses are joined with "or" if occurrence is ANY, or "and" otherwise.
// Empty options yields empty string.
func Build(o *Options) string {
	if o == nil {
		return ""
	}

	operator := " and "
	if o.Occurrence == Any {
		operator = " or "
	}

	b := new(strings.Builder)
	for field, clauses := range o.fields.Iter() {
		for _, c := range clauses {
			if b.Len() != 0 {
				b.WriteString(operator)
			}
			b.WriteString(field)
			b.WriteString(" ")
			b.WriteString(string(c.Op))
			b.WriteString(" '")
			b.WriteString(c.Value)
			b.WriteString("'")
		}
	}
	return b.String()
}
