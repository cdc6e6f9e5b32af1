package pipeline

import (
	"context"
	"log/slog"

	"reelsmith/internal/config"
	"reelsmith/internal/continuity"
	"reelsmith/internal/costs"
	"reelsmith/internal/logging"
	"reelsmith/internal/narration"
	"reelsmith/internal/notifications"
	"reelsmith/internal/render"
	"reelsmith/internal/services"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/motiongen"
	"reelsmith/internal/services/musicgen"
	"reelsmith/internal/services/scriptgen"
	"reelsmith/internal/services/speech"
	"reelsmith/internal/store"
)

// ScriptService covers the four text stages.
type ScriptService interface {
	Outline(ctx context.Context, title, brief string, targetSeconds int) (string, services.Cost, error)
	Draft(ctx context.Context, outline string, wordBudget int) (string, services.Cost, error)
	Scenes(ctx context.Context, draft string, targetSeconds int) ([]scriptgen.ScenePlan, services.Cost, error)
	Review(ctx context.Context, scenes []scriptgen.ScenePlan, targetSeconds int) (scriptgen.EditPlan, services.Cost, error)
}

// ImageService generates scene stills.
type ImageService interface {
	Generate(ctx context.Context, req imagegen.Request) (imagegen.Image, services.Cost, error)
}

// MotionService animates stills into short clips.
type MotionService interface {
	Generate(ctx context.Context, req motiongen.Request) (motiongen.Clip, services.Cost, error)
}

// MusicService composes background music, sound effects, and event cues.
type MusicService interface {
	Compose(ctx context.Context, req musicgen.Request) (musicgen.Track, services.Cost, error)
}

// NarrationFitter synthesizes a scene's narration at whatever speech rate
// lands the measured duration inside its budget.
type NarrationFitter interface {
	Fit(ctx context.Context, text, voice string, budgetSeconds float64) (narration.Result, error)
}

// Renderer assembles the final container.
type Renderer interface {
	Assemble(ctx context.Context, input render.Input) (render.Result, error)
}

// CostRecorder accepts ledger entries without blocking the caller.
type CostRecorder interface {
	Record(outputID string, cost services.Cost)
}

// Deps bundles the collaborators a Pipeline drives. Nil Notifier, Refs, and
// Logger fall back to no-op implementations; everything else is required.
type Deps struct {
	Script   ScriptService
	Image    ImageService
	Motion   MotionService
	Music    MusicService
	Fitter   NarrationFitter
	Renderer Renderer
	Ledger   CostRecorder
	Refs     continuity.Source
	Notifier notifications.Service
	Logger   *slog.Logger
}

// Pipeline executes stage work against an output and enforces the gate
// sequence while doing so.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	script   ScriptService
	images   ImageService
	motion   MotionService
	music    MusicService
	fitter   NarrationFitter
	renderer Renderer
	ledger   CostRecorder
	refs     continuity.Source
	notifier notifications.Service
	logger   *slog.Logger
}

// New wires a Pipeline from pre-built collaborators. Tests inject fakes here.
func New(cfg *config.Config, st *store.Store, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	ledger := deps.Ledger
	if ledger == nil {
		ledger = costs.NewLedger(st, logger)
	}
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		script:   deps.Script,
		images:   deps.Image,
		motion:   deps.Motion,
		music:    deps.Music,
		fitter:   deps.Fitter,
		renderer: deps.Renderer,
		ledger:   ledger,
		refs:     deps.Refs,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// FromConfig builds a Pipeline backed by the real provider clients. Pricing
// is pre-flighted so a missing price rule fails here, before any paid call.
func FromConfig(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Pipeline, error) {
	table := costs.NewPriceTable(cfg.Pricing)
	if err := costs.Preflight(table, cfg); err != nil {
		return nil, err
	}

	scriptPrice, err := table.UnitPrice(scriptgen.ProviderLabel, cfg.Providers.Script.Model, costs.ResourceScript)
	if err != nil {
		return nil, err
	}
	speechPrice, err := table.UnitPrice(speech.ProviderLabel, cfg.Providers.Speech.Model, costs.ResourceNarration)
	if err != nil {
		return nil, err
	}
	imagePrice, err := table.UnitPrice(imagegen.ProviderLabel, cfg.Providers.Image.Model, costs.ResourceImage)
	if err != nil {
		return nil, err
	}
	motionPrice, err := table.UnitPrice(motiongen.ProviderLabel, cfg.Providers.Motion.Model, costs.ResourceMotion)
	if err != nil {
		return nil, err
	}
	musicPrice, err := table.UnitPrice(musicgen.ProviderLabel, cfg.Providers.Music.Model, costs.ResourceMusic)
	if err != nil {
		return nil, err
	}

	speechClient := speech.NewClient(speech.Config{
		APIKey:         cfg.Providers.Speech.APIKey,
		BaseURL:        cfg.Providers.Speech.BaseURL,
		Model:          cfg.Providers.Speech.Model,
		TimeoutSeconds: cfg.Providers.Speech.TimeoutSeconds,
		UnitUSD:        speechPrice,
	})

	deps := Deps{
		Script: scriptgen.NewClient(scriptgen.Config{
			APIKey:         cfg.Providers.Script.APIKey,
			BaseURL:        cfg.Providers.Script.BaseURL,
			Model:          cfg.Providers.Script.Model,
			TimeoutSeconds: cfg.Providers.Script.TimeoutSeconds,
			UnitUSD:        scriptPrice,
		}),
		Image: imagegen.NewClient(imagegen.Config{
			APIKey:         cfg.Providers.Image.APIKey,
			BaseURL:        cfg.Providers.Image.BaseURL,
			Model:          cfg.Providers.Image.Model,
			TimeoutSeconds: cfg.Providers.Image.TimeoutSeconds,
			UnitUSD:        imagePrice,
		}),
		Motion: motiongen.NewClient(motiongen.Config{
			APIKey:         cfg.Providers.Motion.APIKey,
			BaseURL:        cfg.Providers.Motion.BaseURL,
			Model:          cfg.Providers.Motion.Model,
			TimeoutSeconds: cfg.Providers.Motion.TimeoutSeconds,
			UnitUSD:        motionPrice,
		}),
		Music: musicgen.NewClient(musicgen.Config{
			APIKey:         cfg.Providers.Music.APIKey,
			BaseURL:        cfg.Providers.Music.BaseURL,
			Model:          cfg.Providers.Music.Model,
			TimeoutSeconds: cfg.Providers.Music.TimeoutSeconds,
			UnitUSD:        musicPrice,
		}),
		Fitter:   narration.NewFitter(speechClient, narration.FFprobeProber(cfg.FFprobeBinary()), cfg.Narration, logger),
		Renderer: render.NewEngine(cfg.Render, nil, logger),
		Refs:     NewFileReferenceSource(cfg.Paths.WorkspaceDir),
		Logger:   logger,
	}
	return New(cfg, st, deps), nil
}
