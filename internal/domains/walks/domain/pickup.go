package domain

const (
	// DefaultZoneRadiusMeters is the radius of the pickup zone drawn around the pickup point.
	DefaultZoneRadiusMeters = 200.0
	// CameraZoom is the map zoom used when focusing a walk.
	CameraZoom = 17.0
)

// Camera is where a map view is centred.
type Camera struct {
	Target Location
	Zoom   float64
}

// Zone is a circle around the pickup point.
type Zone struct {
	Center       Location
	RadiusMeters float64
}

// PickupView is the walker-side state derived from one walk. It holds no state of its own:
// every change notification produces a fresh view.
type PickupView struct {
	Walk      *Walk
	Camera    Camera
	Zone      *Zone
	CanStart  bool
	CanFinish bool
}

// NewPickupView derives the pickup view for w. The zone is present while the walk is
// ACCEPTED or IN_PROGRESS. A non-positive radius uses DefaultZoneRadiusMeters.
func NewPickupView(w *Walk, radiusMeters float64) PickupView {
	if w == nil {
		return PickupView{}
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultZoneRadiusMeters
	}
	view := PickupView{
		Walk:   w.Redacted(),
		Camera: Camera{Target: w.Pickup, Zoom: CameraZoom},
	}
	switch w.Status {
	case StatusAccepted, StatusInProgress:
		view.Zone = &Zone{Center: w.Pickup, RadiusMeters: radiusMeters}
	}
	view.CanStart = view.Zone != nil && w.Status == StatusAccepted
	view.CanFinish = w.Status == StatusInProgress
	return view
}
