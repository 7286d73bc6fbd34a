// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/sdplayer/internal/api/connect"
	"github.com/osa030/sdplayer/internal/app/notification"
	"github.com/osa030/sdplayer/internal/app/playback"
	"github.com/osa030/sdplayer/internal/infra/audio"
	"github.com/osa030/sdplayer/internal/infra/config"
	"github.com/osa030/sdplayer/internal/infra/library"
	"github.com/osa030/sdplayer/internal/infra/logger"
	"github.com/osa030/sdplayer/internal/infra/tags"
	"github.com/osa030/sdplayer/internal/ui"
)

const appID = "io.github.osa030.sdplayer"

var (
	app        = kingpin.New("sdplayer", "Simple desktop music player")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	// start command (default)
	startCmd   = app.Command("start", "Open the player window (default)").Default()
	startPaths = startCmd.Arg("paths", "Audio files or directories to add to the playlist").Strings()

	// serve command
	serveCmd   = app.Command("serve", "Run without a window, controlled through the remote API")
	servePaths = serveCmd.Arg("paths", "Audio files or directories to add to the playlist").Strings()
	servePlay  = serveCmd.Flag("play", "Start playing the first track").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{Level: "info", File: *logfile}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	switch command {
	case serveCmd.FullCommand():
		err = serve(cfg, *servePaths, *servePlay)
	default:
		err = start(cfg, *startPaths)
	}
	if err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// player bundles the running components.
type player struct {
	backend *audio.Player
	events  *notification.Manager
	session *playback.Session
}

func newPlayer(cfg *config.Config, paths []string) (*player, error) {
	backend, err := audio.NewPlayer(audio.Config{
		SampleRate:      cfg.Audio.SampleRate,
		Buffer:          cfg.BufferDuration(),
		ResampleQuality: cfg.Audio.ResampleQuality,
	})
	if err != nil {
		return nil, err
	}

	events := notification.NewManager()
	session := playback.NewSession(backend, tags.NewReader(audio.Probe), events, playback.Config{
		InitialVolume:  cfg.Playback.InitialVolume,
		SampleInterval: cfg.ProgressInterval(),
		EndOfTrack:     playback.EndOfTrack(cfg.Playback.EndOfTrack),
	})
	backend.OnFinished(session.HandleTrackEnd)

	if files := library.Scan(paths, cfg.Library.Extensions); len(files) > 0 {
		session.AddTracks(files...)
		zlog.Info().Msgf("Added %d tracks from the command line", len(files))
	}

	return &player{backend: backend, events: events, session: session}, nil
}

func (p *player) Close() {
	p.session.Close()
	p.events.Close()
	p.backend.Close()
}

// remote is the running remote control server.
type remote struct {
	service *apiconnect.ControlService
	server  *http.Server
	errCh   chan error
}

func startRemote(cfg *config.Config, p *player) *remote {
	service := apiconnect.NewControlService(p.session, p.events, func(paths []string) []string {
		return library.Scan(paths, cfg.Library.Extensions)
	})
	path, handler := apiconnect.NewControlServiceHandler(
		service,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg.Remote.Token)),
	)

	mux := http.NewServeMux()
	mux.Handle(path, handler)

	// Create server with h2c (HTTP/2 cleartext) support
	r := &remote{
		service: service,
		server: &http.Server{
			Addr:    cfg.Remote.Addr,
			Handler: h2c.NewHandler(mux, &http2.Server{}),
		},
		errCh: make(chan error, 1),
	}

	go func() {
		zlog.Info().Msgf("Starting remote control server: addr=%s", cfg.Remote.Addr)
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.errCh <- err
		}
	}()
	return r
}

func (r *remote) Shutdown() {
	// End event streams first so the server can drain.
	r.service.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.server.Shutdown(ctx); err != nil {
		zlog.Error().Msgf("Failed to shutdown remote server: %v", err)
	}
	zlog.Info().Msg("Remote control server stopped")
}

// start opens the window and blocks until it is closed.
func start(cfg *config.Config, paths []string) error {
	p, err := newPlayer(cfg, paths)
	if err != nil {
		return err
	}
	defer p.Close()

	if cfg.Remote.Enabled {
		r := startRemote(cfg, p)
		defer r.Shutdown()
		go func() {
			if err := <-r.errCh; err != nil {
				zlog.Error().Msgf("Remote control server error: %v", err)
			}
		}()
	}

	a := fyneapp.NewWithID(appID)
	w := ui.NewWindow(a, ui.Config{
		Title:      cfg.Window.Title,
		Welcome:    cfg.Window.Welcome,
		Width:      float32(cfg.Window.Width),
		Height:     float32(cfg.Window.Height),
		Extensions: cfg.Library.Extensions,
	}, p.session, p.events)

	w.ShowAndRun()
	zlog.Info().Msg("Window closed")
	return nil
}

// serve runs headless until SIGINT/SIGTERM or a server error.
func serve(cfg *config.Config, paths []string, play bool) error {
	if cfg.Remote.Token == "" {
		return errors.New("serve requires remote.token or PLAYER_REMOTE_TOKEN")
	}

	p, err := newPlayer(cfg, paths)
	if err != nil {
		return err
	}
	defer p.Close()

	r := startRemote(cfg, p)
	defer r.Shutdown()

	if play {
		if err := p.session.Play(); err != nil {
			zlog.Warn().Msgf("Failed to start playback: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-r.errCh:
		return errors.Wrap(err, "remote server error")
	}
	return nil
}
