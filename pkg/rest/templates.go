package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/api/types/templates"
	"github.com/opst/fleetdeck/pkg/query"
)

// parameters of the template search
const (
	paramSearchWord          = "q"
	paramTemplatesOnly       = "templatesOnly"
	paramTemplatesParentOnly = "templatesParentOnly"
	paramImagesOnly          = "imagesOnly"
	paramDescriptionImages   = "descriptionImages"

	searchWildcard = "*"
)

func (c *client) LoadTemplates(ctx context.Context, so query.SearchOptions) ([]templates.Entry, error) {
	q := url.Values{}
	q.Set(paramDocumentType, "true")

	// the backend searches with one word only.
	word := so.Get(query.KeyAny)
	if word == "" {
		word = searchWildcard
	}
	q.Set(paramSearchWord, word)

	switch so.Get(query.KeyCategory) {
	case query.CategoryTemplates:
		q.Set(paramTemplatesOnly, "true")
		q.Set(paramTemplatesParentOnly, "true")
	case query.CategoryImages:
		q.Set(paramImagesOnly, "true")
	}

	result, err := get[templates.SearchResult](
		ctx, c, documents.Templates+"?"+encodeQuery(q), messagesFor("search templates"),
	)
	if err != nil {
		return nil, err
	}
	if result.Results == nil {
		return []templates.Entry{}, nil
	}
	return result.Results, nil
}

func (c *client) LoadTemplateDescriptionImages(ctx context.Context, templateLink string) ([]string, error) {
	q := url.Values{}
	q.Set(paramDescriptionImages, "true")
	result, err := get[struct {
		DescriptionImages map[string]string `json:"descriptionImages"`
	}](ctx, c, templateLink+"?"+encodeQuery(q), messagesFor("load images of template"))
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(result.DescriptionImages))
	for _, img := range result.DescriptionImages {
		images = append(images, img)
	}
	return images, nil
}

func (c *client) LoadContainerTemplate(ctx context.Context, templateId string) (templates.CompositeDescription, error) {
	return get[templates.CompositeDescription](
		ctx, c, documents.LinkOf(documents.CompositeDescriptions, templateId),
		messagesFor("load template "+templateId),
	)
}

func (c *client) UpdateContainerTemplate(ctx context.Context, template templates.CompositeDescription) (templates.CompositeDescription, error) {
	updated, err := call[*templates.CompositeDescription](
		ctx, c, http.MethodPatch, template.DocumentSelfLink, template,
		messagesFor("update template"),
	)
	if err != nil {
		return templates.CompositeDescription{}, err
	}
	if updated == nil {
		// nothing has been changed.
		return template, nil
	}
	return *updated, nil
}

func (c *client) RemoveContainerTemplate(ctx context.Context, templateId string) error {
	return c.DeleteDocument(ctx, documents.LinkOf(documents.CompositeDescriptions, templateId))
}

func (c *client) LoadContainerDescription(ctx context.Context, link string) (templates.ContainerDescription, error) {
	return get[templates.ContainerDescription](
		ctx, c, documents.LinkOf(documents.ContainerDescriptions, link),
		messagesFor("load container description"),
	)
}

func (c *client) CreateContainerDescription(ctx context.Context, desc templates.ContainerDescription) (templates.ContainerDescription, error) {
	return call[templates.ContainerDescription](
		ctx, c, http.MethodPost, documents.ContainerDescriptions, desc,
		messagesFor("create container description"),
	)
}
