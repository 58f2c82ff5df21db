package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/cache"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/locator"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/render"
	"github.com/kjstillabower/weather-dashboard/internal/service"
	"github.com/kjstillabower/weather-dashboard/internal/validation"
)

const (
	placeMinLength = 1
	placeMaxLength = 100
)

const usage = "장소 이름을 입력하세요. 'me' 또는 '내 위치': 현재 위치, 'q': 종료"

func main() {
	logger, err := observability.NewConsoleLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenMeteoClient(cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	geocoder := client.NewNominatimClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, cfg.GeocoderRPS, logger)
	svc := service.NewWeatherService(weatherClient, geocoder, cache.NewInMemoryCache(), service.Options{
		TTL:           cfg.CacheTTL,
		ForecastDelay: cfg.ServiceForecastDelay(),
		Zone:          cfg.Zone,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newConsole(os.Stdin, os.Stdout, svc, cfg, logger)
	if err := c.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dashboard stopped", zap.Error(err))
		os.Exit(1)
	}
}

// console drives a Resolver from line input and redraws once each operation settles.
type console struct {
	in       *bufio.Reader
	out      io.Writer
	resolver *locator.Resolver
	logger   *zap.Logger
	renderer *render.Renderer
	redraw   redrawFilter
}

func (c *console) draw(snap locator.Snapshot) {
	if c.redraw.changed(snap) {
		c.renderer.Dashboard(c.out, snap)
	}
}

// redrawFilter passes a snapshot only when nothing is loading and it differs
// from the last one drawn in generation, location or section contents.
// State-only transitions are not redrawn.
type redrawFilter struct {
	last *locator.Snapshot
}

func (f *redrawFilter) changed(snap locator.Snapshot) bool {
	if snap.Current.Loading || snap.Forecast.Loading || snap.Hourly.Loading {
		return false
	}
	if f.last != nil &&
		f.last.Generation == snap.Generation &&
		f.last.Location == snap.Location &&
		reflect.DeepEqual(f.last.Current, snap.Current) &&
		reflect.DeepEqual(f.last.Forecast, snap.Forecast) &&
		reflect.DeepEqual(f.last.Hourly, snap.Hourly) {
		return false
	}
	f.last = &snap
	return true
}

func newConsole(in io.Reader, out io.Writer, source locator.WeatherSource, cfg *config.Config, logger *zap.Logger) *console {
	// The prompt and the command loop share one buffered reader so neither
	// swallows input meant for the other.
	reader := bufio.NewReader(in)
	c := &console{in: reader, out: out, logger: logger, renderer: &render.Renderer{Zone: cfg.Zone}}
	c.resolver = locator.New(locator.Config{
		Source:             source,
		Prompt:             locator.NewTerminalPrompt(reader, out),
		Geolocator:         locator.StaticGeolocator{Position: cfg.DevicePosition},
		Notifier:           &locator.WriterNotifier{Out: out},
		GeolocationTimeout: cfg.GeolocationTimeout,
		Logger:             logger,
		// The default location is on screen before the consent question.
		OnChange: func(snap locator.Snapshot) {
			if snap.State == locator.StateAwaitingConsent {
				c.draw(snap)
			}
		},
	})
	return c
}

func (c *console) run(ctx context.Context) error {
	if err := c.resolver.Start(ctx); err != nil && !errors.Is(err, locator.ErrSuperseded) {
		c.logger.Warn("startup location", zap.Error(err))
	}
	c.draw(c.resolver.Snapshot())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "\n%s\n> ", usage)
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if quit := c.handle(ctx, strings.TrimSpace(line)); quit {
			return nil
		}
		c.draw(c.resolver.Snapshot())
	}
}

// handle runs one command line and reports whether the user asked to quit.
func (c *console) handle(ctx context.Context, line string) bool {
	switch strings.ToLower(line) {
	case "":
		return false
	case "q", "quit", "exit":
		return true
	case "me", "내 위치":
		if err := c.resolver.UseMyLocation(ctx); err != nil {
			c.logger.Debug("use my location", zap.Error(err))
		}
		return false
	}

	name, err := validation.ValidatePlaceName(line, placeMinLength, placeMaxLength)
	if err != nil {
		fmt.Fprintf(c.out, "! %v\n", err)
		return false
	}
	if err := c.resolver.SearchPlace(ctx, name); err != nil {
		c.logger.Debug("place search", zap.String("place", name), zap.Error(err))
	}
	return false
}
