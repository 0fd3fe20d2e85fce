// Command lexibot is the crossword-assistant server: it watches the puzzle
// board over a websocket, listens to the player through a local whisper
// model, and talks back through a speech provider, one turn at a time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lexibot/internal/board"
	"github.com/MrWong99/lexibot/internal/clue"
	"github.com/MrWong99/lexibot/internal/config"
	"github.com/MrWong99/lexibot/internal/emotion"
	"github.com/MrWong99/lexibot/internal/health"
	"github.com/MrWong99/lexibot/internal/journal"
	"github.com/MrWong99/lexibot/internal/observe"
	"github.com/MrWong99/lexibot/internal/resilience"
	"github.com/MrWong99/lexibot/internal/session"
	"github.com/MrWong99/lexibot/internal/voicecmd"
	"github.com/MrWong99/lexibot/pkg/audio"
	"github.com/MrWong99/lexibot/pkg/provider/llm"
	"github.com/MrWong99/lexibot/pkg/provider/llm/anyllm"
	"github.com/MrWong99/lexibot/pkg/provider/llm/gemini"
	"github.com/MrWong99/lexibot/pkg/provider/llm/openai"
	"github.com/MrWong99/lexibot/pkg/provider/stt"
	"github.com/MrWong99/lexibot/pkg/provider/stt/whisper"
	"github.com/MrWong99/lexibot/pkg/provider/tts/openaispeech"
	"github.com/MrWong99/lexibot/pkg/provider/vision"
	"github.com/MrWong99/lexibot/pkg/provider/vision/camera"
	"github.com/MrWong99/lexibot/pkg/provider/vision/deepface"
	"github.com/MrWong99/lexibot/pkg/types"
)

const defaultBoardPath = "/ws/board"

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lexibot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lexibot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("lexibot starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "lexibot",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Puzzle ────────────────────────────────────────────────────────────────
	table, err := clue.ParseFile(cfg.Puzzle.CluesFile)
	if err != nil {
		slog.Error("failed to load clue file", "path", cfg.Puzzle.CluesFile, "err", err)
		return 1
	}
	slog.Info("puzzle loaded", "title", cfg.Puzzle.Title, "clues", table.Len())

	// ── Board hub ─────────────────────────────────────────────────────────────
	hub := board.NewHub(table, board.WithUnknownRefHook(func(board.UnknownRef) {
		metrics.UnknownClueRefs.Add(ctx, 1)
	}))
	boardPath := cfg.Board.Path
	if boardPath == "" {
		boardPath = defaultBoardPath
	}
	slog.Info("waiting for board UI", "url", "ws://"+cfg.Server.ListenAddr+boardPath)

	// ── Text generator ────────────────────────────────────────────────────────
	generator, err := buildGenerator(ctx, cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create LLM provider", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	// ── Speech renderer ───────────────────────────────────────────────────────
	player := audio.NewPlayback()
	defer player.Close()
	renderer, err := buildRenderer(cfg.Providers.TTS, player)
	if err != nil {
		slog.Error("failed to create TTS provider", "name", cfg.Providers.TTS.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	// ── Transcription producer ────────────────────────────────────────────────
	sttFactory := newSTTFactory(cfg.Providers.STT)
	initial, err := sttFactory()
	if err != nil {
		slog.Error("failed to create STT source", "name", cfg.Providers.STT.Name, "err", err)
		return 1
	}
	supervisor := resilience.NewSTTSupervisor(initial, sttFactory, resilience.STTSupervisorConfig{})
	defer supervisor.Close()
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name, "model", cfg.Providers.STT.Model)

	// ── Emotion tracker ───────────────────────────────────────────────────────
	tracker, frames, trackerCleanup, err := buildTracker(ctx, cfg.Providers.Vision, metrics)
	if err != nil {
		slog.Error("failed to create vision provider", "name", cfg.Providers.Vision.Name, "err", err)
		return 1
	}
	defer trackerCleanup()

	// ── Session wiring ────────────────────────────────────────────────────────
	sessCfg := session.Config{
		Table:     table,
		Cell:      hub.Cell(),
		STT:       supervisor,
		Tracker:   tracker,
		Generator: generator,
		Renderer:  renderer,
		Voice: types.VoiceProfile{
			ID:          cfg.Session.Voice.ID,
			Provider:    cfg.Providers.TTS.Name,
			SpeedFactor: cfg.Session.Voice.SpeedFactor,
		},
		Commands:     newCommandDetector(cfg.Session),
		Metrics:      metrics,
		IdleTimeout:  cfg.Session.IdleTimeout.Std(),
		PollTimeout:  cfg.Session.PollTimeout.Std(),
		SnapshotWait: cfg.Board.SnapshotWait.Std(),
		TopK:         cfg.Session.TopK,
		Temperature:  cfg.Session.Temperature,
		MaxTokens:    cfg.Session.MaxTokens,
		Intro:        cfg.Session.Intro,
	}
	if cfg.Participant.JournalDir != "" {
		jnl, err := journal.New(cfg.Participant.JournalDir, cfg.Participant.Name)
		if err != nil {
			slog.Error("failed to open journal", "dir", cfg.Participant.JournalDir, "err", err)
			return 1
		}
		sessCfg.Journal = jnl
		slog.Info("journaling enabled", "dir", jnl.Dir())

		// Per-turn camera clips need both the journal and a camera.
		if frames != nil {
			clips, err := journal.NewClipRecorder(jnl.Dir(), frames)
			if err != nil {
				slog.Error("failed to create clip recorder", "err", err)
				return 1
			}
			clips.Start()
			defer clips.Stop()
			sessCfg.Clips = clips
			slog.Info("turn clip capture enabled", "dir", jnl.Dir())
		}
	}

	sess, err := session.New(sessCfg)
	if err != nil {
		slog.Error("failed to create session", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle(boardPath, boardHandler(hub, metrics))
	mux.Handle("/metrics", promhttp.Handler())
	health.New(
		health.BoolChecker("board", hub.Connected, "board not connected"),
		health.BoolChecker("stt", func() bool { return supervisor.Source().IsAlive() }, "producer dead"),
	).Register(mux)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	// ── Run group ─────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		metrics.ActiveSessions.Add(gctx, 1)
		defer metrics.ActiveSessions.Add(context.Background(), -1)
		return sess.Run(gctx)
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		slog.Info("goodbye")
		return 0
	case errors.Is(err, session.ErrQuit):
		slog.Info("user ended the session", "turns", sess.TurnIndex())
		return 0
	default:
		slog.Error("run error", "err", err)
		return 1
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildGenerator creates the configured LLM provider and wraps it in a
// circuit-breaking fallback group.
func buildGenerator(ctx context.Context, entry config.ProviderEntry) (llm.Provider, error) {
	var (
		p   llm.Provider
		err error
	)
	switch entry.Name {
	case "openai":
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		p, err = openai.New(entry.APIKey, entry.Model, opts...)
	case "gemini":
		p, err = gemini.New(ctx, entry.APIKey, entry.Model)
	default:
		// anthropic, ollama, mistral, groq, ... all go through any-llm.
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err = anyllm.New(entry.Name, entry.Model, opts...)
	}
	if err != nil {
		return nil, err
	}
	return resilience.NewLLMFallback(p, entry.Name, resilience.FallbackConfig{}), nil
}

// buildRenderer creates the configured TTS renderer on top of the local
// speaker, wrapped in a circuit-breaking fallback group.
func buildRenderer(entry config.ProviderEntry, player *audio.Playback) (*resilience.TTSFallback, error) {
	if entry.Name != "openai" {
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
	var opts []openaispeech.Option
	if entry.Model != "" {
		opts = append(opts, openaispeech.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		opts = append(opts, openaispeech.WithBaseURL(entry.BaseURL))
	}
	r, err := openaispeech.New(entry.APIKey, player, opts...)
	if err != nil {
		return nil, err
	}
	return resilience.NewTTSFallback(r, entry.Name, resilience.FallbackConfig{}), nil
}

// newSTTFactory returns the constructor the supervisor uses to (re)build the
// whisper source together with its microphone capture.
func newSTTFactory(entry config.ProviderEntry) func() (stt.Source, error) {
	return func() (stt.Source, error) {
		capture, err := audio.NewCapture()
		if err != nil {
			return nil, err
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		src, err := whisper.NewSource(entry.Model, capture, opts...)
		if err != nil {
			capture.Close()
			return nil, err
		}
		return src, nil
	}
}

// buildTracker assembles the camera + classifier emotion tracker, or a no-op
// tracker when no vision provider is configured. The camera is also returned
// so other consumers (the clip recorder) can share it; it is nil for the
// no-op tracker.
func buildTracker(ctx context.Context, entry config.ProviderEntry, metrics *observe.Metrics) (session.Tracker, vision.FrameSource, func(), error) {
	if entry.Name == "" {
		slog.Info("no vision provider configured; emotion context disabled")
		return noopTracker{}, nil, func() {}, nil
	}
	if entry.Name != "deepface" {
		return nil, nil, nil, fmt.Errorf("unknown vision provider %q", entry.Name)
	}

	classifier, err := deepface.New(entry.BaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	var camOpts []camera.Option
	if dev := optString(entry.Options, "device"); dev != "" {
		camOpts = append(camOpts, camera.WithDevice(dev))
	}
	fps := optFloat(entry.Options, "fps")
	if fps > 0 {
		camOpts = append(camOpts, camera.WithFPS(int(fps)))
	}
	cam, err := camera.New(camOpts...)
	if err != nil {
		return nil, nil, nil, err
	}

	trackerOpts := []emotion.Option{
		emotion.WithFaultHook(func(error) { metrics.ClassifierFaults.Add(ctx, 1) }),
	}
	if fps > 0 {
		trackerOpts = append(trackerOpts, emotion.WithSampleRate(fps))
	}
	tracker := emotion.NewTracker(cam, classifier, trackerOpts...)
	slog.Info("provider created", "kind", "vision", "name", entry.Name)

	cleanup := func() {
		if err := cam.Close(); err != nil {
			slog.Warn("camera close error", "err", err)
		}
	}
	return tracker, cam, cleanup, nil
}

// newCommandDetector builds the voice-command filter from session config.
func newCommandDetector(sc config.SessionConfig) *voicecmd.Detector {
	var opts []voicecmd.Option
	if sc.CommandThreshold > 0 {
		opts = append(opts, voicecmd.WithThreshold(sc.CommandThreshold))
	}
	if len(sc.QuitPhrases) > 0 {
		opts = append(opts, voicecmd.WithPhrases(voicecmd.CommandQuit, sc.QuitPhrases...))
	}
	return voicecmd.New(opts...)
}

// boardHandler wraps the hub's websocket endpoint with connection gauging.
func boardHandler(hub *board.Hub, metrics *observe.Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.BoardConnections.Add(r.Context(), 1)
		defer metrics.BoardConnections.Add(r.Context(), -1)
		hub.ServeHTTP(w, r)
	})
}

// noopTracker satisfies session.Tracker when emotion tracking is disabled.
type noopTracker struct{}

func (noopTracker) Start()                 {}
func (noopTracker) Drain() emotion.Summary { return nil }
func (noopTracker) Stop()                  {}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// whole numbers as int, so both kinds are accepted.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
