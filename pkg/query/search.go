package query

import (
	"net/url"
	"sort"
	"strings"

	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
)

// reserved keys of SearchOptions
const (
	KeyOccurrence             = "$occurrence"
	KeyCategory               = "$category"
	KeyAny                    = "any"
	KeyName                   = "name"
	KeyId                     = "id"
	KeyDocumentId             = "documentId"
	KeyImage                  = "image"
	KeyParentId               = "parentId"
	KeyPolicy                 = "policy"
	KeyCompositeComponentLink = "compositeComponentLink"
	KeyAddress                = "address"
	KeyResourcePool           = "resourcePool"
)

// search categories of the containers view
const (
	CategoryContainers   = "containers"
	CategoryApplications = "applications"
)

// search categories of the templates view
const (
	CategoryTemplates = "templates"
	CategoryImages    = "images"
)

// SearchOptions are search terms as users give, keyed by the reserved keys.
//
// It is a value type: methods never modify the receiver.
type SearchOptions map[string][]string

// ParseSearchOptions reads options from a URL query.
func ParseSearchOptions(q url.Values) SearchOptions {
	ret := SearchOptions{}
	for k, vs := range q {
		for _, v := range vs {
			if v == "" {
				continue
			}
			ret[k] = append(ret[k], v)
		}
	}
	return ret
}

func (s SearchOptions) Get(key string) string {
	if vs := s[key]; len(vs) != 0 {
		return vs[0]
	}
	return ""
}

// With returns a copy having the key set.
func (s SearchOptions) With(key string, values ...string) SearchOptions {
	ret := make(SearchOptions, len(s)+1)
	for k, vs := range s {
		ret[k] = append([]string{}, vs...)
	}
	if len(values) == 0 {
		delete(ret, key)
	} else {
		ret[key] = append([]string{}, values...)
	}
	return ret
}

func (s SearchOptions) Occurrence() Occurrence {
	return ParseOccurrence(s.Get(KeyOccurrence))
}

// Category returns the search category. Containers is default.
func (s SearchOptions) Category() string {
	if c := s.Get(KeyCategory); c != "" {
		return c
	}
	return CategoryContainers
}

// Key returns the canonical form of options.
//
// Options having the same terms have the same key, regardless of map iteration order.
// Order of values in a key is significant, since it is the order of clauses.
func (s SearchOptions) Key() string {
	keys := make([]string, 0, len(s))
	for k, vs := range s {
		if len(vs) == 0 {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		q[k] = s[k]
	}
	return q.Encode()
}

func contains(v string) string {
	return "*" + v + "*"
}

func startsWith(v string) string {
	return v + "*"
}

// ContainersFilter translates search options of the containers view into a filter.
//
// The same translation serves applications; the category decides the name field and
// the factory of document ids.
func ContainersFilter(s SearchOptions) string {
	if len(s) == 0 {
		return ""
	}
	o := NewOptions(s.Occurrence())
	isContainers := s.Category() == CategoryContainers

	for _, v := range s[KeyAny] {
		o.Add(AllFields, EqTo(contains(v)))
	}

	nameField := "name"
	if isContainers {
		nameField = "names/item"
	}
	for _, v := range s[KeyName] {
		o.Add(nameField, EqTo(contains(v)))
	}

	for _, v := range s[KeyId] {
		o.Add("id", EqTo(startsWith(v)))
	}

	factory := documents.CompositeComponents
	if isContainers {
		factory = documents.Containers
	}
	for _, v := range s[KeyDocumentId] {
		o.Add("documentSelfLink", EqTo(startsWith(factory+"/"+v)))
	}

	for _, v := range s[KeyImage] {
		o.Add("image", EqTo(contains(v)))
	}

	for _, v := range s[KeyParentId] {
		o.Add("parentLink", EqTo(documents.ComputeResources+"/"+v))
	}

	for _, v := range s[KeyPolicy] {
		o.Add("groupResourcePolicyLink", EqTo(startsWith(v)))
	}

	for _, v := range s[KeyCompositeComponentLink] {
		o.Add("compositeComponentLink", EqTo(startsWith(v)))
	}

	return Build(o)
}

// HostsFilter translates search options of hosts into a filter.
//
// Parent computes of cloud endpoints are excluded always, so terms are combined with "and"
// regardless of the occurrence.
func HostsFilter(s SearchOptions, onlyContainerHosts bool) string {
	o := NewOptions(All)
	o.Add("descriptionLink", NeTo(documents.ComputeDescriptions+"/*-parent-compute-desc"))
	o.Add("customProperties/"+containers.PropComputeHost, EqTo("*"))
	if onlyContainerHosts {
		o.Add("customProperties/"+containers.PropComputeContainerHost, EqTo("*"))
	}

	for _, v := range s[KeyAny] {
		o.Add(AllFields, EqTo(contains(v)))
	}
	for _, v := range s[KeyAddress] {
		o.Add("address", EqTo(contains(v)))
	}
	for _, v := range s[KeyResourcePool] {
		o.Add("resourcePoolLink", EqTo(documents.LinkOf(documents.ResourcePools, v)))
	}

	return Build(o)
}

// ClusterFilter selects containers of a cluster.
func ClusterFilter(descriptionLink string, contextId string) string {
	o := NewOptions(All)
	o.Add("descriptionLink", EqTo(documents.LinkOf(documents.ContainerDescriptions, descriptionLink)))
	if contextId != "" {
		o.Add("customProperties/"+containers.PropCompositionContextId, EqTo(contextId))
	}
	return Build(o)
}

// LinksFilter selects documents having one of links.
func LinksFilter(links []string) string {
	o := NewOptions(Any)
	for _, l := range links {
		o.Add("documentSelfLink", EqTo(l))
	}
	return Build(o)
}

// RequestStagesFilter selects request statuses in one of stages.
func RequestStagesFilter(stages ...string) string {
	o := NewOptions(Any)
	for _, s := range stages {
		o.Add("taskInfo/stage", EqTo(strings.ToUpper(s)))
	}
	return Build(o)
}
