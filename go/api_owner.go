package walkserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ownerhttpmapper "github.com/Apurer/dogwalk-api/internal/domains/owners/adapters/http/mapper"
	ownerports "github.com/Apurer/dogwalk-api/internal/domains/owners/ports"
	walkhttpmapper "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/http/mapper"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

// OwnerAPI serves the owner's own walk, pets and payment method.
type OwnerAPI struct {
	walks     walkports.Service
	owners    ownerports.Service
	responder *apierrors.Responder
}

// NewOwnerAPI creates an OwnerAPI.
func NewOwnerAPI(walks walkports.Service, owners ownerports.Service, responder *apierrors.Responder) OwnerAPI {
	return OwnerAPI{walks: walks, owners: owners, responder: responder}
}

// Get /v1/owner/active-walk
// The caller's most recent walk that has not completed; 204 when none
func (api *OwnerAPI) GetActiveWalk(c *gin.Context) {
	active, err := api.walks.GetActiveWalk(c.Request.Context(), callerFrom(c))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	if active == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, walkhttpmapper.FromProjection(active))
}

// Get /v1/owner/pets
// Lists the caller's pets
func (api *OwnerAPI) ListPets(c *gin.Context) {
	pets, err := api.owners.ListPets(c.Request.Context(), callerFrom(c))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ownerhttpmapper.FromPets(pets))
}

// Post /v1/owner/pets
// Adds a pet profile
func (api *OwnerAPI) AddPet(c *gin.Context) {
	var payload ownerhttpmapper.AddPet
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, api.responder, err)
		return
	}
	created, err := api.owners.AddPet(c.Request.Context(), ownerhttpmapper.ToAddPetInput(callerFrom(c), payload))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ownerhttpmapper.FromPet(created))
}

// Get /v1/owner/payment-method
// Reads the caller's payment method
func (api *OwnerAPI) GetPaymentMethod(c *gin.Context) {
	method, err := api.owners.GetPaymentMethod(c.Request.Context(), callerFrom(c))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ownerhttpmapper.FromPaymentMethod(method))
}

// Put /v1/owner/payment-method
// Saves the caller's payment method
func (api *OwnerAPI) SavePaymentMethod(c *gin.Context) {
	var payload ownerhttpmapper.SavePaymentMethod
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, api.responder, err)
		return
	}
	method, err := api.owners.SavePaymentMethod(c.Request.Context(), ownerhttpmapper.ToSavePaymentMethodInput(callerFrom(c), payload))
	if err != nil {
		api.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ownerhttpmapper.FromPaymentMethod(method))
}
