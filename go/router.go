// Package walkserver is the HTTP and WebSocket transport of the dog-walk marketplace.
package walkserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

// ApiHandleFunctions groups the handlers the router serves.
type ApiHandleFunctions struct {
	WalkAPI    WalkAPI
	OwnerAPI   OwnerAPI
	SessionAPI SessionAPI
	LiveAPI    LiveAPI
}

// RouterOption customizes NewRouter.
type RouterOption func(*routerOptions)

type routerOptions struct {
	middleware []gin.HandlerFunc
	responder  *apierrors.Responder
}

// WithMiddleware installs middleware ahead of every route, e.g. otelgin.
func WithMiddleware(middleware ...gin.HandlerFunc) RouterOption {
	return func(o *routerOptions) {
		o.middleware = append(o.middleware, middleware...)
	}
}

// WithResponder replaces the problem responder used by the auth middleware.
func WithResponder(responder *apierrors.Responder) RouterOption {
	return func(o *routerOptions) {
		if responder != nil {
			o.responder = responder
		}
	}
}

// NewRouter returns a gin engine serving every route, authenticated through authn.
func NewRouter(handlers ApiHandleFunctions, authn Authenticator, opts ...RouterOption) *gin.Engine {
	options := routerOptions{responder: NewResponder("")}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID())
	router.Use(options.middleware...)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")
	api := v1.Group("", Authenticate(authn, options.responder, false))
	{
		api.POST("/walks", handlers.WalkAPI.RequestWalk)
		api.GET("/walks/available", handlers.WalkAPI.ListAvailable)
		api.GET("/walks/:walkId", handlers.WalkAPI.GetWalk)
		api.GET("/walks/:walkId/view", handlers.WalkAPI.GetPickupView)
		api.POST("/walks/:walkId/claim", handlers.WalkAPI.ClaimWalk)
		api.POST("/walks/:walkId/start", handlers.WalkAPI.StartWalk)
		api.POST("/walks/:walkId/finish", handlers.WalkAPI.FinishWalk)

		api.GET("/owner/active-walk", handlers.OwnerAPI.GetActiveWalk)
		api.GET("/owner/pets", handlers.OwnerAPI.ListPets)
		api.POST("/owner/pets", handlers.OwnerAPI.AddPet)
		api.GET("/owner/payment-method", handlers.OwnerAPI.GetPaymentMethod)
		api.PUT("/owner/payment-method", handlers.OwnerAPI.SavePaymentMethod)

		api.POST("/session/sign-out", handlers.SessionAPI.SignOut)
	}

	live := v1.Group("/live", Authenticate(authn, options.responder, true))
	{
		live.GET("/owner", handlers.LiveAPI.OwnerStream)
		live.GET("/walker", handlers.LiveAPI.WalkerStream)
		live.GET("/walks/:walkId", handlers.LiveAPI.WalkStream)
	}
	return router
}
