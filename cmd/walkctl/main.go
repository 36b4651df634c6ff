package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/gin-gonic/gin"

	"github.com/Apurer/dogwalk-api/internal/app/api"
	identitypostgres "github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/persistence/postgres"
	identityapp "github.com/Apurer/dogwalk-api/internal/domains/identity/application"
	ownerapp "github.com/Apurer/dogwalk-api/internal/domains/owners/application"
	walkerapp "github.com/Apurer/dogwalk-api/internal/domains/walkers/application"
	walktypes "github.com/Apurer/dogwalk-api/internal/domains/walks/application/types"
	walkdomain "github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/platform/migrations"
	platformpostgres "github.com/Apurer/dogwalk-api/internal/platform/postgres"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	"github.com/Apurer/dogwalk-api/internal/shared/live"
)

const WalkCtlVersion = "0.1.0"

var errValueClosed = errors.New("session value closed")

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Dog-walk control.

The token command signs with JWT_SECRET and records the session in POSTGRES_DSN
so the API accepts it.

Usage:
    walkctl token --user=<user_id> --role=<role> [--ttl_hours=<hours>]
    walkctl scenario [--pets=<names>] [--lat=<latitude>] [--lon=<longitude>]
    walkctl -h | --help
    walkctl --version

Options:
    -h --help              Show this screen.
    --version              Show version.
    --user=<user_id>       Subject of the token.
    --role=<role>          owner or walker.
    --ttl_hours=<hours>    Token lifetime [default: 24].
    --pets=<names>         Comma separated pet names [default: Fido,Rex].
    --lat=<latitude>       Pickup latitude [default: 19.4326].
    --lon=<longitude>      Pickup longitude [default: -99.1332].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], WalkCtlVersion)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	if token_, _ := opts.Bool("token"); token_ {
		err = issueToken(ctx, opts)
	} else if scenario_, _ := opts.Bool("scenario"); scenario_ {
		err = scenario(ctx, opts)
	}
	if err != nil {
		Err.Fatal(err)
	}
}

func issueToken(ctx context.Context, opts docopt.Opts) error {
	userID, _ := opts.String("--user")
	rawRole, _ := opts.String("--role")
	role, err := auth.ParseRole(rawRole)
	if err != nil {
		return err
	}
	ttl, err := hoursOption(opts, "--ttl_hours")
	if err != nil {
		return err
	}

	db, err := platformpostgres.Connect(ctx, os.Getenv("POSTGRES_DSN"))
	if err != nil {
		return fmt.Errorf("token sessions need postgres: %w", err)
	}
	defer platformpostgres.Close(db)
	if err := migrations.Run(db); err != nil {
		return err
	}
	identity, err := identityapp.NewService([]byte(strings.TrimSpace(os.Getenv("JWT_SECRET"))), identitypostgres.NewSessionStore(db))
	if err != nil {
		return err
	}
	token, err := identity.IssueToken(ctx, userID, role, ttl)
	if err != nil {
		return err
	}
	Out.Printf("%s", token.Value)
	Err.Printf("token %s for %s (%s) expires %s", token.ID, userID, role, token.ExpiresAt.Format(time.RFC3339))
	return nil
}

func scenario(ctx context.Context, opts docopt.Opts) error {
	rawPets, _ := opts.String("--pets")
	lat, err := floatOption(opts, "--lat")
	if err != nil {
		return err
	}
	lon, err := floatOption(opts, "--lon")
	if err != nil {
		return err
	}
	var pets []string
	for _, name := range strings.Split(rawPets, ",") {
		if name = strings.TrimSpace(name); name != "" {
			pets = append(pets, name)
		}
	}
	return runScenario(ctx, os.Stdout, scenarioInput{PetNames: pets, Latitude: lat, Longitude: lon})
}

type scenarioInput struct {
	PetNames  []string
	Latitude  float64
	Longitude float64
}

// runScenario drives one walk from request to completion against in-memory stores, reporting
// what the owner and walker sessions observe at every step.
func runScenario(ctx context.Context, w io.Writer, input scenarioInput) error {
	gin.SetMode(gin.ReleaseMode)
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	app, cleanup, err := api.Build(ctx, api.Config{
		DocstoreBackend:  api.BackendMemory,
		JWTSecret:        []byte(hex.EncodeToString(secret)),
		TokenTTL:         identityapp.DefaultTokenTTL,
		ZoneRadiusMeters: walkdomain.DefaultZoneRadiusMeters,
		TemporalDisabled: true,
	}, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	owner := auth.Caller{UserID: "owner-demo", Role: auth.RoleOwner}
	walker := auth.Caller{UserID: "walker-demo", Role: auth.RoleWalker}

	ownerSession, err := ownerapp.StartSession(ctx, owner, app.Walks, app.Owners, ownerapp.WithWalkRequester(app.Workflows))
	if err != nil {
		return err
	}
	defer ownerSession.Close()
	walkerSession, err := walkerapp.StartSession(ctx, walker, app.Walks)
	if err != nil {
		return err
	}
	defer walkerSession.Close()

	requested, err := ownerSession.RequestWalk(ctx, input.PetNames, input.Latitude, input.Longitude, "")
	if err != nil {
		return fmt.Errorf("request walk: %w", err)
	}
	walkID := requested.Entity.ID
	endCode := requested.Entity.EndCode
	fmt.Fprintf(w, "owner requested walk %s for %s, end code %s\n", walkID, strings.Join(requested.Entity.PetNames, ", "), endCode)

	available, err := await(ctx, walkerSession.Available(), func(list []*walktypes.WalkProjection) bool {
		return len(list) > 0
	})
	if err != nil {
		return fmt.Errorf("walker never saw the walk: %w", err)
	}
	fmt.Fprintf(w, "walker sees %d available walk(s)\n", len(available))

	if err := walkerSession.Focus(ctx, walkID); err != nil {
		return err
	}
	steps := []struct {
		name   string
		status walkdomain.Status
		run    func() (*walktypes.WalkProjection, error)
	}{
		{"claim", walkdomain.StatusAccepted, func() (*walktypes.WalkProjection, error) { return walkerSession.Claim(ctx, walkID) }},
		{"start", walkdomain.StatusInProgress, func() (*walktypes.WalkProjection, error) { return walkerSession.Start(ctx, walkID) }},
		{"finish", walkdomain.StatusCompleted, func() (*walktypes.WalkProjection, error) {
			return walkerSession.Finish(ctx, walkID, endCode)
		}},
	}
	for _, step := range steps {
		if _, err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		view, err := await(ctx, walkerSession.Focused(), func(v *walktypes.PickupViewProjection) bool {
			return v != nil && v.Entity.Walk.Status == step.status
		})
		if err != nil {
			return fmt.Errorf("walker view after %s: %w", step.name, err)
		}
		fmt.Fprintf(w, "walker %s: status %s, can start %t, can finish %t\n", step.name, view.Entity.Walk.Status, view.Entity.CanStart, view.Entity.CanFinish)
		if step.status == walkdomain.StatusCompleted {
			continue
		}
		if _, err := await(ctx, ownerSession.ActiveWalk(), func(p *walktypes.WalkProjection) bool {
			return p != nil && p.Entity.Status == step.status
		}); err != nil {
			return fmt.Errorf("owner view after %s: %w", step.name, err)
		}
		fmt.Fprintf(w, "owner sees walk %s\n", step.status)
	}

	if _, err := await(ctx, ownerSession.ActiveWalk(), func(p *walktypes.WalkProjection) bool { return p == nil }); err != nil {
		return fmt.Errorf("owner still sees an active walk: %w", err)
	}
	fmt.Fprintln(w, "owner has no active walk; scenario complete")
	return nil
}

// await blocks until value reports a state accepted by match.
func await[T any](ctx context.Context, value *live.Value[T], match func(T) bool) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for state := range value.Watch(ctx) {
		if match(state) {
			return state, nil
		}
	}
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, errValueClosed
}

func hoursOption(opts docopt.Opts, key string) (time.Duration, error) {
	raw, _ := opts.String(key)
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return time.Duration(hours) * time.Hour, nil
}

func floatOption(opts docopt.Opts, key string) (float64, error) {
	raw, _ := opts.String(key)
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return value, nil
}
