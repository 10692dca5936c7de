// Package cluster groups containers provisioned from the same description in the same
// composition context into clusters.
package cluster

import (
	"net/url"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/opst/fleetdeck/pkg/api/types/containers"
	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/utils/maps"
)

// separator between description link and context id in a cluster id.
const Separator = "__"

// Containers discovered on hosts (not provisioned by us) have keys ending with this.
// Their description cannot be restored, so they are never grouped.
const DiscoveredSuffix = "__discovered__"

// Key returns the cluster id of containers.
//
// descriptionLink is normalized to start with the factory of container descriptions.
// When contextId is empty, the id has no separator.
func Key(descriptionLink string, contextId string) string {
	id := documents.LinkOf(documents.ContainerDescriptions, descriptionLink)
	if contextId != "" {
		id += Separator + contextId
	}
	return id
}

// KeyOf returns the cluster id of the container.
func KeyOf(c containers.Container) string {
	return Key(c.DescriptionLink, c.ContextId())
}

// Split splits cluster id into description link and context id.
//
// The id is split at the first separator. Cluster ids in document id form
// (without the factory) are accepted.
func Split(clusterId string) (descriptionLink string, contextId string) {
	desc, ctx, _ := strings.Cut(clusterId, Separator)
	return documents.LinkOf(documents.ContainerDescriptions, desc), ctx
}

func DescriptionLinkOf(clusterId string) string {
	d, _ := Split(clusterId)
	return d
}

func ContextIdOf(clusterId string) string {
	_, c := Split(clusterId)
	return c
}

// Cluster is an aggregate of containers sharing a cluster id.
type Cluster struct {
	// Id is the cluster id.
	Id string `json:"id"`

	// DocumentId is the last segment of Id.
	DocumentId string `json:"documentId"`

	DescriptionLink string `json:"descriptionLink"`

	// Name is the image of the first member.
	Name string `json:"name"`
	Icon string `json:"icon"`

	Containers []containers.Container `json:"containers"`
}

func (c *Cluster) Size() int {
	return len(c.Containers)
}

// New makes a cluster of members. Without members, it is named "N/A".
func New(id string, members []containers.Container) *Cluster {
	c := &Cluster{
		Id:              id,
		DocumentId:      documents.DocumentId(id),
		DescriptionLink: id,
		Name:            "N/A",
		Containers:      members,
	}
	if len(members) != 0 {
		c.Name = members[0].Image
		c.Icon = ImageIcon(members[0].Image)
	}
	return c
}

// Entry is an element of aggregated list. Exactly one of Container or Cluster is set.
type Entry struct {
	Container *containers.Container
	Cluster   *Cluster
}

func (e Entry) IsCluster() bool {
	return e.Cluster != nil
}

// Aggregate groups containers into clusters.
//
// Groups are emitted in the order their first member appears. A group of one container
// is emitted as the bare container. Members of discovered groups are emitted one by one.
//
// The result is deterministic for the same input.
func Aggregate(nodes []containers.Container) []Entry {
	groups := maps.NewOrdered[string, []containers.Container]()
	for _, n := range nodes {
		groups.Update(KeyOf(n), func(members []containers.Container) []containers.Container {
			return append(members, n)
		})
	}

	entries := make([]Entry, 0, groups.Len())
	for k, members := range groups.Iter() {
		if strings.HasSuffix(k, DiscoveredSuffix) || len(members) == 1 {
			for i := range members {
				entries = append(entries, Entry{Container: &members[i]})
			}
			continue
		}
		entries = append(entries, Entry{Cluster: New(k, members)})
	}
	return entries
}

// Find finds the cluster having the id from entries, in either of link or document id form.
func Find(entries []Entry, clusterId string) (*Cluster, bool) {
	for _, e := range entries {
		if e.Cluster == nil {
			continue
		}
		if e.Cluster.Id == clusterId || e.Cluster.DocumentId == clusterId {
			return e.Cluster, true
		}
	}
	return nil, false
}

// ImageName returns the repository name of an image for display, without tag or digest.
//
// Images in the official library of the default registry lose "library/",
// and other images on the default registry lose the registry.
func ImageName(image string) string {
	ref, err := name.ParseReference(image, name.WeakValidation)
	if err != nil {
		// best effort: drop the tag.
		if i := strings.LastIndex(image, ":"); strings.LastIndex(image, "/") < i {
			return image[:i]
		}
		return image
	}
	repo := ref.Context()
	if repo.RegistryStr() != name.DefaultRegistry {
		return repo.Name()
	}
	return strings.TrimPrefix(repo.RepositoryStr(), "library/")
}

// ImageIcon returns the link to the icon of the image.
func ImageIcon(image string) string {
	if image == "" {
		return ""
	}
	q := url.Values{}
	q.Set("container-image", ImageName(image))
	return documents.ContainerImageIcons + "?" + q.Encode()
}
