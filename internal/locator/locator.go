// Package locator decides which location the dashboard shows. It always loads
// a default location first, asks before using device geolocation, and falls
// back to what is already shown whenever a newer location cannot be loaded.
package locator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/service"
)

// DefaultGeolocationTimeout bounds one CurrentPosition call.
const DefaultGeolocationTimeout = 10 * time.Second

// UserLocationSuffix marks a location obtained from device geolocation.
const UserLocationSuffix = " (현재위치)"

// DefaultLocation is shown before, and instead of, the user's own location.
var DefaultLocation = models.Location{
	Latitude:  37.5665,
	Longitude: 126.9780,
	Name:      "서울",
	Country:   "KR",
}

// ErrSuperseded is returned when a newer call replaced this call's result.
var ErrSuperseded = errors.New("superseded by a newer location request")

// State is the resolver's position in the location flow.
type State int

const (
	StateInitial State = iota
	StateDefaultLoaded
	StateAwaitingConsent
	StateUserLocationLoaded
	StateDefaultRetained
	StatePlaceLoaded
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateDefaultLoaded:
		return "default_loaded"
	case StateAwaitingConsent:
		return "awaiting_consent"
	case StateUserLocationLoaded:
		return "user_location_loaded"
	case StateDefaultRetained:
		return "default_retained"
	case StatePlaceLoaded:
		return "place_loaded"
	default:
		return "unknown"
	}
}

// WeatherSource is the subset of service.WeatherService the resolver drives.
type WeatherSource interface {
	CurrentWeather(ctx context.Context, loc models.Location) (models.CurrentWeather, error)
	Forecast(ctx context.Context, loc models.Location) (models.ForecastSeries, error)
	Hourly(ctx context.Context, loc models.Location) (models.HourlySeries, error)
	WeatherByPlace(ctx context.Context, name string) (models.CurrentWeather, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) models.PlaceName
}

// PermissionPrompt asks the user a yes/no question and blocks for the answer.
type PermissionPrompt interface {
	Ask(message string) bool
}

// Notifier shows a message the user must see.
type Notifier interface {
	Notify(message string)
}

// Section is the display state of one of the three weather panels. Data is the
// last successful result and survives later failures.
type Section[T any] struct {
	Loading bool
	Error   string
	Data    T
	HasData bool
}

// Snapshot is a consistent copy of the resolver's state.
type Snapshot struct {
	State      State
	Location   models.Location
	Current    Section[models.CurrentWeather]
	Forecast   Section[models.ForecastSeries]
	Hourly     Section[models.HourlySeries]
	Generation uint64
}

// Config wires a Resolver. Source, Prompt, Geolocator and Notifier are required.
type Config struct {
	Source             WeatherSource
	Prompt             PermissionPrompt
	Geolocator         Geolocator
	Notifier           Notifier
	Default            models.Location
	GeolocationTimeout time.Duration
	Logger             *zap.Logger
	// OnChange, if set, receives a snapshot after every applied update.
	OnChange func(Snapshot)
}

// Resolver runs the location flow. Every public operation takes a new
// generation number; results are applied only while their generation is the
// latest one issued, so a slow earlier request can never overwrite a newer one.
type Resolver struct {
	source     WeatherSource
	prompt     PermissionPrompt
	geo        Geolocator
	notifier   Notifier
	def        models.Location
	geoTimeout time.Duration
	logger     *zap.Logger
	onChange   func(Snapshot)

	mu       sync.Mutex
	gen      uint64
	state    State
	location models.Location
	current  Section[models.CurrentWeather]
	forecast Section[models.ForecastSeries]
	hourly   Section[models.HourlySeries]
}

// New returns a Resolver in StateInitial.
func New(cfg Config) *Resolver {
	if cfg.Default == (models.Location{}) {
		cfg.Default = DefaultLocation
	}
	if cfg.GeolocationTimeout <= 0 {
		cfg.GeolocationTimeout = DefaultGeolocationTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Resolver{
		source:     cfg.Source,
		prompt:     cfg.Prompt,
		geo:        cfg.Geolocator,
		notifier:   cfg.Notifier,
		def:        cfg.Default,
		geoTimeout: cfg.GeolocationTimeout,
		logger:     cfg.Logger,
		onChange:   cfg.OnChange,
		state:      StateInitial,
		location:   cfg.Default,
	}
}

// Snapshot returns the current state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Resolver) snapshotLocked() Snapshot {
	return Snapshot{
		State:      r.state,
		Location:   r.location,
		Current:    r.current,
		Forecast:   r.forecast,
		Hourly:     r.hourly,
		Generation: r.gen,
	}
}

// Start loads the default location, then asks for consent to use the
// device location. Declining or any failure keeps the default. Nothing is retried.
func (r *Resolver) Start(ctx context.Context) error {
	gen := r.next()
	r.loadSections(ctx, gen, r.def)
	if !r.update(gen, func() { r.state = StateDefaultLoaded }) {
		return ErrSuperseded
	}

	if !r.update(gen, func() { r.state = StateAwaitingConsent }) {
		return ErrSuperseded
	}
	if !r.prompt.Ask(MsgConsent) {
		r.logger.Info("device location declined")
		r.update(gen, func() { r.state = StateDefaultRetained })
		return nil
	}

	err := r.loadUserLocation(ctx, gen, MsgStartGeolocationFailed, MsgStartLoadFailed)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		r.update(gen, func() { r.state = StateDefaultRetained })
	}
	return err
}

// UseMyLocation runs geolocation, reverse geocoding and loading for the
// device position regardless of earlier consent. Failures keep what is shown.
func (r *Resolver) UseMyLocation(ctx context.Context) error {
	gen := r.next()
	return r.loadUserLocation(ctx, gen, MsgLocationLoadFailed, MsgLocationLoadFailed)
}

// SearchPlace resolves name and loads all three sections for it. Any failure
// sets the same message on every section.
func (r *Resolver) SearchPlace(ctx context.Context, name string) error {
	gen := r.next()
	r.update(gen, func() {
		r.current.Loading, r.current.Error = true, ""
		r.forecast.Loading, r.forecast.Error = true, ""
		r.hourly.Loading, r.hourly.Error = true, ""
	})

	failAll := func(err error) error {
		msg := service.UserMessage(err)
		if !r.update(gen, func() {
			r.current.Loading, r.current.Error = false, msg
			r.forecast.Loading, r.forecast.Error = false, msg
			r.hourly.Loading, r.hourly.Error = false, msg
		}) {
			return ErrSuperseded
		}
		r.logger.Warn("place search failed", zap.String("query", name), zap.Error(err))
		return err
	}

	cw, err := r.source.WeatherByPlace(ctx, name)
	if err != nil {
		return failAll(err)
	}
	loc := models.Location{
		Latitude:  cw.Coord.Latitude,
		Longitude: cw.Coord.Longitude,
		Name:      cw.Name,
		Country:   cw.Sys.Country,
	}
	if !r.update(gen, func() {
		r.location = loc
		r.state = StatePlaceLoaded
		r.current = Section[models.CurrentWeather]{Data: cw, HasData: true}
	}) {
		return ErrSuperseded
	}

	fc, err := r.source.Forecast(ctx, loc)
	if err != nil {
		return failAll(err)
	}
	if !r.update(gen, func() {
		r.forecast = Section[models.ForecastSeries]{Data: fc, HasData: true}
	}) {
		return ErrSuperseded
	}

	hr, err := r.source.Hourly(ctx, loc)
	if err != nil {
		return failAll(err)
	}
	if !r.update(gen, func() {
		r.hourly = Section[models.HourlySeries]{Data: hr, HasData: true}
	}) {
		return ErrSuperseded
	}
	return nil
}

// loadUserLocation geolocates, names the point and loads it. unknownGeoMsg is
// shown for geolocation failures outside the denied/unavailable/timeout classes.
func (r *Resolver) loadUserLocation(ctx context.Context, gen uint64, unknownGeoMsg, loadFailMsg string) error {
	coords, err := r.currentPosition(ctx)
	if err != nil {
		if r.stale(gen) {
			return ErrSuperseded
		}
		r.logger.Warn("geolocation failed", zap.Error(err))
		r.notifier.Notify(geolocationMessage(err, unknownGeoMsg))
		return err
	}

	place := r.source.ReverseGeocode(ctx, coords.Latitude, coords.Longitude)
	loc := models.Location{
		Latitude:  coords.Latitude,
		Longitude: coords.Longitude,
		Name:      place.Name + UserLocationSuffix,
		Country:   place.Country,
	}

	r.update(gen, func() { r.current.Loading = true })
	cw, err := r.source.CurrentWeather(ctx, loc)
	if err != nil {
		if !r.update(gen, func() { r.current.Loading = false }) {
			return ErrSuperseded
		}
		r.logger.Warn("user location load failed", zap.String("location", loc.Name), zap.Error(err))
		r.notifier.Notify(loadFailMsg)
		return err
	}
	if !r.update(gen, func() {
		r.location = loc
		r.state = StateUserLocationLoaded
		r.current = Section[models.CurrentWeather]{Data: cw, HasData: true}
	}) {
		return ErrSuperseded
	}

	r.loadForecast(ctx, gen, loc)
	r.loadHourly(ctx, gen, loc)
	if r.stale(gen) {
		return ErrSuperseded
	}
	return nil
}

func (r *Resolver) currentPosition(ctx context.Context) (models.Coordinates, error) {
	if r.geo == nil {
		return models.Coordinates{}, ErrUnsupported
	}
	geoCtx, cancel := context.WithTimeout(ctx, r.geoTimeout)
	defer cancel()
	coords, err := r.geo.CurrentPosition(geoCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return models.Coordinates{}, errors.Join(ErrTimeout, err)
	}
	return coords, err
}

// loadSections loads current, forecast and hourly for loc in that order.
// Each section records its own outcome.
func (r *Resolver) loadSections(ctx context.Context, gen uint64, loc models.Location) {
	r.update(gen, func() { r.current.Loading, r.current.Error = true, "" })
	cw, err := r.source.CurrentWeather(ctx, loc)
	r.update(gen, func() {
		r.current.Loading = false
		if err != nil {
			r.current.Error = service.UserMessage(err)
			return
		}
		r.location = loc
		r.current.Data, r.current.HasData = cw, true
	})
	r.loadForecast(ctx, gen, loc)
	r.loadHourly(ctx, gen, loc)
}

func (r *Resolver) loadForecast(ctx context.Context, gen uint64, loc models.Location) {
	r.update(gen, func() { r.forecast.Loading, r.forecast.Error = true, "" })
	fc, err := r.source.Forecast(ctx, loc)
	r.update(gen, func() {
		r.forecast.Loading = false
		if err != nil {
			r.forecast.Error = service.UserMessage(err)
			return
		}
		r.forecast.Data, r.forecast.HasData = fc, true
	})
}

func (r *Resolver) loadHourly(ctx context.Context, gen uint64, loc models.Location) {
	r.update(gen, func() { r.hourly.Loading, r.hourly.Error = true, "" })
	hr, err := r.source.Hourly(ctx, loc)
	r.update(gen, func() {
		r.hourly.Loading = false
		if err != nil {
			r.hourly.Error = service.UserMessage(err)
			return
		}
		r.hourly.Data, r.hourly.HasData = hr, true
	})
}

func (r *Resolver) next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	return r.gen
}

func (r *Resolver) stale(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen != r.gen
}

// update applies fn if gen is still the latest generation and reports whether it did.
func (r *Resolver) update(gen uint64, fn func()) bool {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		r.logger.Debug("dropping superseded update", zap.Uint64("generation", gen))
		return false
	}
	fn()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	if r.onChange != nil {
		r.onChange(snap)
	}
	return true
}
