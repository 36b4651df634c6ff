package walkserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	ownerhttpmapper "github.com/Apurer/dogwalk-api/internal/domains/owners/adapters/http/mapper"
	ownerapp "github.com/Apurer/dogwalk-api/internal/domains/owners/application"
	ownertypes "github.com/Apurer/dogwalk-api/internal/domains/owners/application/types"
	ownerdomain "github.com/Apurer/dogwalk-api/internal/domains/owners/domain"
	ownerports "github.com/Apurer/dogwalk-api/internal/domains/owners/ports"
	walkerapp "github.com/Apurer/dogwalk-api/internal/domains/walkers/application"
	walkhttpmapper "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/http/mapper"
	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	walkports "github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

// Frame types sent on live streams.
const (
	FrameActiveWalk     = "activeWalk"
	FramePets           = "pets"
	FramePaymentMethod  = "paymentMethod"
	FrameAvailableWalks = "availableWalks"
	FrameWalkView       = "walkView"
	FrameError          = "error"

	// CommandFocus switches the walk a walker stream follows.
	CommandFocus = "focus"
)

// Frame is one message on a live stream.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Command is a message a walker client sends on its stream.
type Command struct {
	Type   string `json:"type"`
	WalkID string `json:"walkId"`
}

// LiveSettings tunes the WebSocket streams.
type LiveSettings struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadTimeout  time.Duration
	FrameBuffer  int
}

// DefaultLiveSettings returns the production stream settings.
func DefaultLiveSettings() LiveSettings {
	return LiveSettings{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		ReadTimeout:  75 * time.Second,
		FrameBuffer:  16,
	}
}

// LiveAPI streams owner and walker sessions over WebSockets, one session per connection.
type LiveAPI struct {
	walks     walkports.Service
	owners    ownerports.Service
	requester ownerapp.WalkRequester
	responder *apierrors.Responder
	logger    *slog.Logger
	settings  LiveSettings
	upgrader  websocket.Upgrader
}

// NewLiveAPI creates a LiveAPI. requester may be nil to request walks through the walks service.
func NewLiveAPI(walks walkports.Service, owners ownerports.Service, requester ownerapp.WalkRequester, responder *apierrors.Responder, logger *slog.Logger, settings LiveSettings) LiveAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return LiveAPI{
		walks:     walks,
		owners:    owners,
		requester: requester,
		responder: responder,
		logger:    logger,
		settings:  settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Get /v1/live/owner
// Streams the owner's active walk, pets and payment method
func (api *LiveAPI) OwnerStream(c *gin.Context) {
	caller := callerFrom(c)
	if err := caller.Require(auth.RoleOwner); err != nil {
		api.responder.RespondError(c, err)
		return
	}
	api.serve(c, func(ctx context.Context, out chan<- Frame) (func(Command), func(), error) {
		var opts []ownerapp.SessionOption
		if api.requester != nil {
			opts = append(opts, ownerapp.WithWalkRequester(api.requester))
		}
		session, err := ownerapp.StartSession(ctx, caller, api.walks, api.owners, opts...)
		if err != nil {
			return nil, nil, err
		}
		go forward(ctx, out, FrameActiveWalk, session.ActiveWalk().Watch(ctx), func(p *walktypes.WalkProjection) any {
			return walkhttpmapper.FromProjection(p)
		})
		go forward(ctx, out, FramePets, session.Pets().Watch(ctx), func(pets []*ownertypes.PetProjection) any {
			return ownerhttpmapper.FromPets(pets)
		})
		go forward(ctx, out, FramePaymentMethod, session.PaymentMethod().Watch(ctx), func(method *ownerdomain.PaymentMethod) any {
			return ownerhttpmapper.FromPaymentMethod(method)
		})
		go api.forwardErrors(ctx, out, session.LastError().Watch(ctx))
		return nil, session.Close, nil
	})
}

// Get /v1/live/walker
// Streams available walks; a focus command adds the pickup view of one walk
func (api *LiveAPI) WalkerStream(c *gin.Context) {
	api.walkerStream(c, true, c.Query("focus"))
}

// Get /v1/live/walks/:walkId
// Streams the pickup view of one walk
func (api *LiveAPI) WalkStream(c *gin.Context) {
	api.walkerStream(c, false, c.Param("walkId"))
}

func (api *LiveAPI) walkerStream(c *gin.Context, withAvailable bool, focus string) {
	caller := callerFrom(c)
	if err := caller.Require(auth.RoleWalker); err != nil {
		api.responder.RespondError(c, err)
		return
	}
	api.serve(c, func(ctx context.Context, out chan<- Frame) (func(Command), func(), error) {
		var opts []walkerapp.SessionOption
		if !withAvailable {
			opts = append(opts, walkerapp.WithoutAvailable())
		}
		session, err := walkerapp.StartSession(ctx, caller, api.walks, opts...)
		if err != nil {
			return nil, nil, err
		}
		if withAvailable {
			go forward(ctx, out, FrameAvailableWalks, session.Available().Watch(ctx), func(list []*walktypes.WalkProjection) any {
				return walkhttpmapper.FromProjections(list)
			})
		}
		go forward(ctx, out, FrameWalkView, session.Focused().Watch(ctx), func(view *walktypes.PickupViewProjection) any {
			return walkhttpmapper.FromPickupView(view)
		})
		go api.forwardErrors(ctx, out, session.LastError().Watch(ctx))
		if focus != "" {
			if err := session.Focus(ctx, focus); err != nil {
				session.Close()
				return nil, nil, err
			}
		}
		onCommand := func(cmd Command) {
			if cmd.Type != CommandFocus {
				return
			}
			if err := session.Focus(ctx, cmd.WalkID); err != nil {
				send(ctx, out, Frame{Type: FrameError, Data: api.responder.Resolve(err)})
			}
		}
		if !withAvailable {
			onCommand = nil
		}
		return onCommand, session.Close, nil
	})
}

// startFunc opens the session behind a stream. It returns the command handler (nil to ignore
// inbound messages) and the release function.
type startFunc func(ctx context.Context, out chan<- Frame) (func(Command), func(), error)

// serve upgrades the connection and pumps frames until either side goes away.
func (api *LiveAPI) serve(c *gin.Context, start startFunc) {
	conn, err := api.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		api.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	handleCtx, handleCancel := context.WithCancel(c.Request.Context())
	defer handleCancel()

	out := make(chan Frame, api.frameBuffer())
	onCommand, release, err := start(handleCtx, out)
	if err != nil {
		api.writeFrame(conn, Frame{Type: FrameError, Data: api.responder.Resolve(err)})
		api.writeClose(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}
	defer release()

	go func() {
		defer handleCancel()
		for {
			if api.settings.ReadTimeout > 0 {
				conn.SetReadDeadline(time.Now().Add(api.settings.ReadTimeout))
			}
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if onCommand == nil || messageType != websocket.TextMessage {
				continue
			}
			var cmd Command
			if err := json.Unmarshal(message, &cmd); err != nil {
				send(handleCtx, out, Frame{Type: FrameError, Data: apierrors.ErrBadRequest.WithDetail(err.Error())})
				continue
			}
			onCommand(cmd)
		}
	}()
	conn.SetPongHandler(func(string) error {
		if api.settings.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(api.settings.ReadTimeout))
		}
		return nil
	})

	ping := time.NewTicker(api.pingInterval())
	defer ping.Stop()
	for {
		select {
		case <-handleCtx.Done():
			api.writeClose(conn, websocket.CloseNormalClosure, "")
			return
		case frame := <-out:
			if err := api.writeFrame(conn, frame); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(api.writeTimeout())); err != nil {
				return
			}
		}
	}
}

func (api *LiveAPI) writeFrame(conn *websocket.Conn, frame Frame) error {
	conn.SetWriteDeadline(time.Now().Add(api.writeTimeout()))
	return conn.WriteJSON(frame)
}

func (api *LiveAPI) writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(api.writeTimeout()))
}

func (api *LiveAPI) forwardErrors(ctx context.Context, out chan<- Frame, errs <-chan error) {
	for err := range errs {
		if err == nil {
			continue
		}
		if !send(ctx, out, Frame{Type: FrameError, Data: api.responder.Resolve(err)}) {
			return
		}
	}
}

func (api *LiveAPI) writeTimeout() time.Duration {
	if api.settings.WriteTimeout > 0 {
		return api.settings.WriteTimeout
	}
	return DefaultLiveSettings().WriteTimeout
}

func (api *LiveAPI) pingInterval() time.Duration {
	if api.settings.PingInterval > 0 {
		return api.settings.PingInterval
	}
	return DefaultLiveSettings().PingInterval
}

func (api *LiveAPI) frameBuffer() int {
	if api.settings.FrameBuffer > 0 {
		return api.settings.FrameBuffer
	}
	return DefaultLiveSettings().FrameBuffer
}

// forward turns every state a live value reports into a frame until the value or ctx ends.
func forward[T any](ctx context.Context, out chan<- Frame, kind string, values <-chan T, toData func(T) any) {
	for value := range values {
		if !send(ctx, out, Frame{Type: kind, Data: toData(value)}) {
			return
		}
	}
}

func send(ctx context.Context, out chan<- Frame, frame Frame) bool {
	select {
	case out <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}
