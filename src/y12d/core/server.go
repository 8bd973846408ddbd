package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/bitswalk/y12/src/common/cli"
	"github.com/bitswalk/y12/src/y12d/api"
	"github.com/bitswalk/y12/src/y12d/build"
	"github.com/bitswalk/y12/src/y12d/catalog"
	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/db/migrations"
	"github.com/bitswalk/y12/src/y12d/dispatch"
	_ "github.com/bitswalk/y12/src/y12d/docs"
	"github.com/bitswalk/y12/src/y12d/kconfig"
	"github.com/bitswalk/y12/src/y12d/metrics"
	"github.com/bitswalk/y12/src/y12d/storage"
)

// Server holds the HTTP server instance and its collaborators
type Server struct {
	router       *gin.Engine
	httpServer   *http.Server
	database     *db.Database
	storage      storage.Backend
	buildManager *build.Manager
	api          *api.API
}

func setLoggers() {
	migrations.SetLogger(log)
	db.SetLogger(log)
	storage.SetLogger(log)
	catalog.SetLogger(log)
	kconfig.SetLogger(log)
	dispatch.SetLogger(log)
	build.SetLogger(log)
	api.SetLogger(log)
}

func loadCatalog() (*catalog.Catalog, error) {
	path := cli.GetExpandedString("catalog.path")
	if path == "" {
		return catalog.Builtin(), nil
	}
	log.Info("Loading package catalog", "path", path)
	return catalog.Load(path)
}

// newGenerator returns a generator with a completer only when an API key is set
func newGenerator() *kconfig.Generator {
	var completer kconfig.Completer
	if key := viper.GetString("ai.api_key"); key != "" {
		completer = kconfig.NewAnthropicClient(kconfig.AnthropicConfig{
			APIKey:     key,
			Model:      viper.GetString("ai.model"),
			Endpoint:   viper.GetString("ai.endpoint"),
			MaxRetries: 2,
			UserAgent:  VersionInfo.UserAgent("y12d"),
		})
	} else {
		log.Warn("No AI API key configured, kernel configs use the rule based fallback")
	}
	return kconfig.NewGenerator(completer, kconfig.Config{
		Timeout: viper.GetDuration("ai.timeout"),
	})
}

// NewServer creates a new Server instance
func NewServer(database *db.Database, storageBackend storage.Backend, cat *catalog.Catalog) *Server {
	if viper.GetString("log.level") == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	jobs := db.NewJobRepository(database)
	if ttl := viper.GetDuration("jobs.ttl"); ttl > 0 {
		jobs.SetTTL(ttl)
	}

	buildSecret := viper.GetString("security.build_secret")
	tokens := dispatch.NewTokenIssuer(buildSecret, 0)
	secret := dispatch.NewSecretVerifier(buildSecret)
	if !secret.Configured() {
		log.Warn("No build secret configured, image uploads are refused")
	}

	dispatcher := dispatch.NewGitHubDispatcher(dispatch.GitHubConfig{
		Token:       viper.GetString("dispatch.github.token"),
		Repo:        viper.GetString("dispatch.github.repo"),
		Workflow:    viper.GetString("dispatch.github.workflow"),
		Ref:         viper.GetString("dispatch.github.ref"),
		APIURL:      viper.GetString("dispatch.github.api_url"),
		CallbackURL: viper.GetString("dispatch.callback_url"),
		UserAgent:   VersionInfo.UserAgent("y12d"),
		Timeout:     viper.GetDuration("dispatch.timeout"),
	}, tokens)
	var dispatchTarget string
	if dispatcher.Enabled() {
		dispatchTarget = dispatcher.Repo()
	}

	generator := newGenerator()
	m := metrics.New()

	buildManager := build.NewManager(build.Deps{
		Database:   database,
		Jobs:       jobs,
		Artifacts:  storage.NewArtifactStore(storageBackend),
		Catalog:    cat,
		Generator:  generator,
		Dispatcher: dispatcher,
		Metrics:    m,
	}, build.Config{
		PurgeInterval:   viper.GetDuration("jobs.purge_interval"),
		PersistInterval: viper.GetDuration("jobs.persist_interval"),
		DispatchTimeout: viper.GetDuration("dispatch.timeout"),
	})

	rate := viper.GetInt("api.rate_limit")
	api.SetVersionInfo(VersionInfo)
	apiInstance := api.New(api.Config{
		BuildManager:        buildManager,
		Tokens:              tokens,
		Secret:              secret,
		Metrics:             m,
		RateLimit:           api.RateLimitConfig{Enabled: rate > 0, CreatePerMin: rate},
		RequireCallbackAuth: viper.GetString("security.callback_auth") == "required",
		AIEnabled:           generator.Enabled(),
		DispatchTarget:      dispatchTarget,
	})

	return &Server{
		router:       apiInstance.Router(),
		database:     database,
		storage:      storageBackend,
		buildManager: buildManager,
		api:          apiInstance,
	}
}

// Run starts the build manager and the HTTP server and blocks until a
// shutdown signal arrives
func (s *Server) Run() error {
	if err := s.buildManager.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start build manager: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", viper.GetString("server.bind"), viper.GetInt("server.port"))
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Minute,
		// no write timeout: image downloads and log streams are long lived
		IdleTimeout: 60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting y12d server", "address", addr)
		log.Info("Storage enabled", "type", s.storage.Type(), "location", s.storage.Location())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		s.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("Received signal, shutting down", "signal", sig)
	}

	return s.Shutdown()
}

// Shutdown stops accepting requests, interrupts running pipelines and
// persists the job store
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error("HTTP server shutdown error", "error", err)
		}
	}

	if s.buildManager != nil {
		log.Info("Stopping build manager")
		if err := s.buildManager.Stop(); err != nil {
			log.Error("Build manager shutdown error", "error", err)
		}
	}

	if s.api != nil {
		s.api.Close()
	}

	if s.database != nil {
		log.Info("Persisting job store to disk")
		if err := s.database.Shutdown(); err != nil {
			log.Error("Job store shutdown error", "error", err)
			return err
		}
		log.Info("Job store persisted successfully")
	}
	return nil
}

// runServer is called by the root command to start the server
func runServer() error {
	setLoggers()
	log.Info("y12d starting",
		"version", VersionInfo.Version,
		"build_date", VersionInfo.BuildDate,
		"log_output", log.Output(),
	)

	dbPath := viper.GetString("database.path")
	log.Info("Initializing job store", "persist_path", dbPath)
	database, err := db.New(db.Config{
		PersistPath: dbPath,
		LoadOnStart: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}

	storageType := viper.GetString("storage.type")
	s3Endpoint := viper.GetString("storage.s3.endpoint")
	if s3Endpoint != "" {
		storageType = "s3"
	}
	log.Info("Initializing storage", "type", storageType)

	storageBackend, err := storage.New(storage.Config{
		Type: storageType,
		Local: storage.LocalConfig{
			BasePath: cli.GetExpandedString("storage.local.path"),
		},
		S3: storage.S3Config{
			Endpoint:        s3Endpoint,
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			AccessKeyID:     viper.GetString("storage.s3.access_key"),
			SecretAccessKey: viper.GetString("storage.s3.secret_key"),
			UsePathStyle:    viper.GetBool("storage.s3.path_style"),
		},
	})
	if err != nil {
		database.Shutdown()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := storageBackend.Ping(pingCtx); err != nil {
		log.Warn("Artifact storage not reachable, builds will fail until it is", "type", storageBackend.Type(), "error", err)
	}
	cancel()

	cat, err := loadCatalog()
	if err != nil {
		database.Shutdown()
		return err
	}

	return NewServer(database, storageBackend, cat).Run()
}
