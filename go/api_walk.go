package walkserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	walkhttpmapper "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/http/mapper"
	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

// WalkAPI wires HTTP transport with the walks bounded context service and workflows.
type WalkAPI struct {
	service   walkports.Service
	workflows walkports.WorkflowOrchestrator
	responder *apierrors.Responder
}

// NewWalkAPI creates a WalkAPI backed by the provided service. workflows may be nil.
func NewWalkAPI(service walkports.Service, workflows walkports.WorkflowOrchestrator, responder *apierrors.Responder) WalkAPI {
	return WalkAPI{service: service, workflows: workflows, responder: responder}
}

// Post /v1/walks
// Request a walk for the caller's pets
func (api *WalkAPI) RequestWalk(c *gin.Context) {
	var payload walkhttpmapper.RequestWalk
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, api.responder, err)
		return
	}
	input, err := walkhttpmapper.ToRequestWalkInput(callerFrom(c), payload, strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)))
	if err != nil {
		respondBadRequest(c, api.responder, err)
		return
	}
	created, err := api.requestWalk(c.Request.Context(), input)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, walkhttpmapper.FromProjection(created))
}

func (api *WalkAPI) requestWalk(ctx context.Context, input walktypes.RequestWalkInput) (*walktypes.WalkProjection, error) {
	if api.workflows != nil {
		return api.workflows.RequestWalk(ctx, input)
	}
	return api.service.RequestWalk(ctx, input)
}

// Get /v1/walks/available
// Lists walks waiting for a walker, oldest first
func (api *WalkAPI) ListAvailable(c *gin.Context) {
	list, err := api.service.ListAvailable(c.Request.Context(), callerFrom(c))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, walkhttpmapper.FromProjections(list))
}

// Get /v1/walks/:walkId
// Find walk by ID
func (api *WalkAPI) GetWalk(c *gin.Context) {
	walk, err := api.service.GetWalk(c.Request.Context(), api.identify(c))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, walkhttpmapper.FromProjection(walk))
}

// Get /v1/walks/:walkId/view
// Pickup view of a walk for walkers
func (api *WalkAPI) GetPickupView(c *gin.Context) {
	view, err := api.service.GetPickupView(c.Request.Context(), api.identify(c))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, walkhttpmapper.FromPickupView(view))
}

// Post /v1/walks/:walkId/claim
// Claim a requested walk
func (api *WalkAPI) ClaimWalk(c *gin.Context) {
	api.transition(c, api.service.ClaimWalk)
}

// Post /v1/walks/:walkId/start
// Start the claimed walk
func (api *WalkAPI) StartWalk(c *gin.Context) {
	api.transition(c, api.service.StartWalk)
}

// Post /v1/walks/:walkId/finish
// Finish the walk with the owner's end code
func (api *WalkAPI) FinishWalk(c *gin.Context) {
	var payload walkhttpmapper.FinishWalk
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, api.responder, err)
		return
	}
	input, err := walkhttpmapper.ToFinishWalkInput(callerFrom(c), c.Param("walkId"), payload)
	if err != nil {
		respondBadRequest(c, api.responder, err)
		return
	}
	finished, err := api.service.FinishWalk(c.Request.Context(), input)
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, walkhttpmapper.FromProjection(finished))
}

func (api *WalkAPI) transition(c *gin.Context, apply func(context.Context, walktypes.WalkTransitionInput) (*walktypes.WalkProjection, error)) {
	updated, err := apply(c.Request.Context(), api.identify(c))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, walkhttpmapper.FromProjection(updated))
}

func (api *WalkAPI) identify(c *gin.Context) walktypes.WalkIdentifier {
	return walktypes.WalkIdentifier{Caller: callerFrom(c), WalkID: c.Param("walkId")}
}
