// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/markdave123-py/Contexta/internal/auth"
	"github.com/markdave123-py/Contexta/internal/config"
	"github.com/markdave123-py/Contexta/internal/core"
	"github.com/markdave123-py/Contexta/internal/core/cache"
	db "github.com/markdave123-py/Contexta/internal/core/database"
	"github.com/markdave123-py/Contexta/internal/core/ingestion_engine"
	"github.com/markdave123-py/Contexta/internal/core/llm"
	objectclient "github.com/markdave123-py/Contexta/internal/core/object-client"
	"github.com/markdave123-py/Contexta/internal/services"
)

type App struct {
	DBClient *db.DatabaseClient
	Gemini   *llm.GeminiClient
	Server   *Server
}

// Services is everything the HTTP layer depends on.
type Services struct {
	Guard     *auth.Guard
	Users     *services.UserService
	Documents *services.DocumentService
	Answers   *services.AnswerService
}

// Deps are the external collaborators the services are built on.
type Deps struct {
	DB        db.DbClient
	Generator core.Generator
	Embedder  core.Embedder
	Extractor core.PageExtractor
	Storage   core.ObjectClient
}

// NewApp initializes every external client up front and fails if any of
// them is unusable.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database initialized and ready")

	var storage core.ObjectClient = objectclient.NoopClient{}
	if cfg.BlobBackend == config.BlobS3 {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			_ = dbClient.Close()
			return nil, err
		}
		storage = s3Client
		log.Info().Str("bucket", cfg.BucketName).Msg("object client initialized and ready")
	}

	gemini, err := llm.NewGeminiClient(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("couldn't initialize the model client: %w", err)
	}
	if err := gemini.Ping(appCtx, cfg.GenModel); err != nil {
		_ = gemini.Close()
		_ = dbClient.Close()
		return nil, fmt.Errorf("model %s is not reachable: %w", cfg.GenModel, err)
	}

	gateway, err := llm.NewGateway(gemini, llm.GatewayConfig{
		Model:         cfg.GenModel,
		FallbackModel: cfg.FallbackModel,
		Dimension:     cfg.EmbedDim,
		MaxInFlight:   cfg.MaxInFlight,
	}, log)
	if err != nil {
		_ = gemini.Close()
		_ = dbClient.Close()
		return nil, err
	}

	extractor, err := ingestion_engine.NewExtractor(cfg.PDFExtractor)
	if err != nil {
		_ = gemini.Close()
		_ = dbClient.Close()
		return nil, err
	}

	svc, err := NewServices(cfg, Deps{
		DB:        dbClient,
		Generator: gateway,
		Embedder:  gateway,
		Extractor: extractor,
		Storage:   storage,
	}, log)
	if err != nil {
		_ = gemini.Close()
		_ = dbClient.Close()
		return nil, err
	}

	return &App{
		DBClient: dbClient,
		Gemini:   gemini,
		Server:   NewServer(cfg, log, svc),
	}, nil
}

// NewServices wires the cache, the guard and the services over deps.
func NewServices(cfg *config.Config, deps Deps, log zerolog.Logger) (*Services, error) {
	docs, err := cache.New(deps.DB, deps.Embedder, cfg.CacheMaxDocs, log)
	if err != nil {
		return nil, err
	}
	guard, err := auth.NewGuard(cfg.JWTSecret, cfg.TokenTTL, deps.DB)
	if err != nil {
		return nil, err
	}
	prompts, err := services.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	return &Services{
		Guard:     guard,
		Users:     services.NewUserService(deps.DB, guard, log),
		Documents: services.NewDocumentService(deps.DB, docs, deps.Generator, deps.Embedder, deps.Extractor, deps.Storage, prompts, log),
		Answers:   services.NewAnswerService(deps.DB, docs, deps.Generator, deps.Embedder, prompts, log),
	}, nil
}

func (a *App) Close() {
	if a.Gemini != nil {
		_ = a.Gemini.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
