package domain

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func newRequestedWalk(t *testing.T) *Walk {
	t.Helper()
	w, err := NewWalk("owner-1", []string{"Fido", "Rex"}, Location{Latitude: 19.4, Longitude: -99.1}, "4821")
	require.NoError(t, err)
	w.ID = "walk-1"
	return w
}

func TestNewWalk(t *testing.T) {
	w := newRequestedWalk(t)
	require.Equal(t, StatusRequested, w.Status)
	require.Equal(t, 100.0, w.TotalCost)
	require.Empty(t, w.WalkerID)
	require.Equal(t, []string{"Fido", "Rex"}, w.PetNames)
}

func TestNewWalk_Validation(t *testing.T) {
	pickup := Location{Latitude: 1, Longitude: 1}
	cases := []struct {
		name    string
		owner   string
		pets    []string
		pickup  Location
		code    string
		wantErr error
	}{
		{"missing owner", " ", []string{"Fido"}, pickup, "1234", ErrOwnerRequired},
		{"no pets", "o", nil, pickup, "1234", ErrNoPets},
		{"blank pet", "o", []string{"Fido", "  "}, pickup, "1234", ErrBlankPetName},
		{"latitude", "o", []string{"Fido"}, Location{Latitude: 91}, "1234", ErrInvalidLocation},
		{"longitude", "o", []string{"Fido"}, Location{Longitude: -181}, "1234", ErrInvalidLocation},
		{"short code", "o", []string{"Fido"}, pickup, "123", ErrInvalidEndCode},
		{"non numeric code", "o", []string{"Fido"}, pickup, "12a4", ErrInvalidEndCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWalk(tc.owner, tc.pets, tc.pickup, tc.code)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNewWalk_DoesNotAliasPetNames(t *testing.T) {
	pets := []string{"Fido"}
	w, err := NewWalk("o", pets, Location{}, "1234")
	require.NoError(t, err)
	pets[0] = "Changed"
	require.Equal(t, []string{"Fido"}, w.PetNames)
}

func TestGenerateEndCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9]{4}$`)
	for i := 0; i < 200; i++ {
		code, err := GenerateEndCode()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)
		require.GreaterOrEqual(t, code, "1000")
	}
}

func TestStatusOrder(t *testing.T) {
	require.True(t, StatusRequested.CanAdvanceTo(StatusAccepted))
	require.True(t, StatusAccepted.CanAdvanceTo(StatusInProgress))
	require.True(t, StatusInProgress.CanAdvanceTo(StatusCompleted))
	require.False(t, StatusAccepted.CanAdvanceTo(StatusCompleted))
	require.False(t, StatusCompleted.CanAdvanceTo(StatusRequested))
	require.False(t, Status("LOST").CanAdvanceTo(StatusRequested))

	_, err := ParseStatus("LOST")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestLifecycle(t *testing.T) {
	w := newRequestedWalk(t)

	require.ErrorIs(t, w.Start("walker-a"), ErrInvalidTransition)

	require.NoError(t, w.Claim("walker-a"))
	require.Equal(t, StatusAccepted, w.Status)
	require.Equal(t, "walker-a", w.WalkerID)

	require.ErrorIs(t, w.Claim("walker-b"), ErrAlreadyClaimed)
	require.Equal(t, "walker-a", w.WalkerID)

	require.ErrorIs(t, w.Finish("walker-a", "4821"), ErrInvalidTransition)
	require.ErrorIs(t, w.Start("walker-b"), ErrNotAssignedWalker)
	require.NoError(t, w.Start("walker-a"))
	require.Equal(t, StatusInProgress, w.Status)

	require.ErrorIs(t, w.Finish("walker-a", "9999"), ErrCodeMismatch)
	require.ErrorIs(t, w.Finish("walker-a", "4821 "), ErrCodeMismatch)
	require.ErrorIs(t, w.Finish("walker-a", " 4821"), ErrCodeMismatch)
	require.Equal(t, StatusInProgress, w.Status)
	require.ErrorIs(t, w.Finish("walker-b", "4821"), ErrNotAssignedWalker)

	require.NoError(t, w.Finish("walker-a", "4821"))
	require.Equal(t, StatusCompleted, w.Status)
	require.ErrorIs(t, w.Finish("walker-a", "4821"), ErrInvalidTransition)

	names := make([]string, 0)
	for _, e := range w.Events() {
		names = append(names, e.EventName())
	}
	require.Equal(t, []string{"walks.walk.claimed", "walks.walk.started", "walks.walk.completed"}, names)
	w.ClearEvents()
	require.Empty(t, w.Events())
}

func TestClaim_RequiresWalker(t *testing.T) {
	w := newRequestedWalk(t)
	require.ErrorIs(t, w.Claim(""), ErrWalkerRequired)
	require.Equal(t, StatusRequested, w.Status)
}

func TestRestore(t *testing.T) {
	_, err := Restore(Walk{Status: StatusAccepted})
	require.ErrorIs(t, err, ErrInconsistentWalkData)
	_, err = Restore(Walk{Status: StatusRequested, WalkerID: "w"})
	require.ErrorIs(t, err, ErrInconsistentWalkData)
	_, err = Restore(Walk{Status: "BOGUS"})
	require.ErrorIs(t, err, ErrUnknownStatus)

	w, err := Restore(Walk{ID: "x", Status: StatusInProgress, WalkerID: "w", PetNames: []string{"Fido"}})
	require.NoError(t, err)
	require.Equal(t, "x", w.ID)
}

func TestRedacted(t *testing.T) {
	w := newRequestedWalk(t)
	redacted := w.Redacted()
	require.Empty(t, redacted.EndCode)
	require.Equal(t, "4821", w.EndCode)
	redacted.PetNames[0] = "Changed"
	require.Equal(t, "Fido", w.PetNames[0])
}

func TestSelectActive(t *testing.T) {
	done := &Walk{ID: "a", Status: StatusCompleted}
	older := &Walk{ID: "b", Status: StatusAccepted}
	newer := &Walk{ID: "c", Status: StatusRequested}
	finished := &Walk{ID: "d", Status: StatusCompleted}

	require.Nil(t, SelectActive(nil))
	require.Nil(t, SelectActive([]*Walk{done, finished}))
	require.Equal(t, "c", SelectActive([]*Walk{done, older, newer, finished}).ID)
	require.Equal(t, "b", SelectActive([]*Walk{older, finished}).ID)
}

func TestNewPickupView(t *testing.T) {
	w := newRequestedWalk(t)

	view := NewPickupView(w, 0)
	require.Nil(t, view.Zone)
	require.False(t, view.CanStart)
	require.Equal(t, CameraZoom, view.Camera.Zoom)
	require.Equal(t, w.Pickup, view.Camera.Target)
	require.Empty(t, view.Walk.EndCode)

	require.NoError(t, w.Claim("walker-a"))
	view = NewPickupView(w, 0)
	require.NotNil(t, view.Zone)
	require.Equal(t, DefaultZoneRadiusMeters, view.Zone.RadiusMeters)
	require.Equal(t, w.Pickup, view.Zone.Center)
	require.True(t, view.CanStart)
	require.False(t, view.CanFinish)

	require.NoError(t, w.Start("walker-a"))
	view = NewPickupView(w, 350)
	require.NotNil(t, view.Zone)
	require.Equal(t, 350.0, view.Zone.RadiusMeters)
	require.False(t, view.CanStart)
	require.True(t, view.CanFinish)

	require.NoError(t, w.Finish("walker-a", "4821"))
	view = NewPickupView(w, 0)
	require.Nil(t, view.Zone)
	require.False(t, view.CanFinish)
}
