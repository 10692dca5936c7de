package rest

import (
	"context"
	"net/http"

	"github.com/opst/fleetdeck/pkg/api/types/documents"
	"github.com/opst/fleetdeck/pkg/api/types/requests"
	"github.com/opst/fleetdeck/pkg/query"
	"github.com/opst/fleetdeck/pkg/utils"
)

const orderRequestStatus = "documentExpirationTimeMicros desc"

func (c *client) SubmitRequest(ctx context.Context, req requests.Request) (requests.Request, error) {
	return call[requests.Request](
		ctx, c, http.MethodPost, documents.Requests, req,
		messagesFor("submit request"),
	)
}

func (c *client) LoadRequestStatus(ctx context.Context, trackerLink string) (requests.Status, error) {
	return get[requests.Status](ctx, c, trackerLink, messagesFor("load request status"))
}

func (c *client) LoadRequestStatuses(ctx context.Context, stages ...requests.Stage) (documents.List[requests.Status], error) {
	filter := query.RequestStagesFilter(
		utils.Map(stages, func(s requests.Stage) string { return string(s) })...,
	)
	return page[requests.Status](
		ctx, c, documents.RequestStatus,
		c.paginationQuery(filter, false, orderRequestStatus),
		messagesFor("load request statuses"),
	)
}
