// Package build runs the orchestration pipeline of a y12 build job, from the
// initial artifacts written at submission to the hand-off to the external
// image runner.
package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bitswalk/y12/src/common/logs"
	"github.com/bitswalk/y12/src/y12d/catalog"
	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/dispatch"
	"github.com/bitswalk/y12/src/y12d/generate"
	"github.com/bitswalk/y12/src/y12d/kconfig"
	"github.com/bitswalk/y12/src/y12d/metrics"
	"github.com/bitswalk/y12/src/y12d/storage"
	"github.com/bitswalk/y12/src/y12d/validate"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the build package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Config holds configuration for the build manager
type Config struct {
	PurgeInterval   time.Duration // How often expired jobs are deleted
	PersistInterval time.Duration // How often the job store is snapshotted to disk, 0 disables
	DispatchTimeout time.Duration // Upper bound for one workflow dispatch
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PurgeInterval:   time.Hour,
		PersistInterval: 5 * time.Minute,
		DispatchTimeout: dispatch.DefaultTimeout,
	}
}

// Deps are the collaborators a Manager works with. Dispatcher and Metrics
// may be nil.
type Deps struct {
	Database   *db.Database
	Jobs       *db.JobRepository
	Artifacts  *storage.ArtifactStore
	Catalog    *catalog.Catalog
	Generator  *kconfig.Generator
	Dispatcher dispatch.Dispatcher
	Metrics    *metrics.Metrics
}

// Manager owns the detached pipeline goroutines of every job
type Manager struct {
	database   *db.Database
	jobs       *db.JobRepository
	artifacts  *storage.ArtifactStore
	catalog    *catalog.Catalog
	generator  *kconfig.Generator
	validator  *validate.Engine
	dispatcher dispatch.Dispatcher
	metrics    *metrics.Metrics
	config     Config

	mu       sync.RWMutex
	wg       sync.WaitGroup // maintenance loop
	inflight sync.WaitGroup // job pipelines
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewManager creates a new build manager
func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.PurgeInterval <= 0 {
		cfg.PurgeInterval = DefaultConfig().PurgeInterval
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultConfig().DispatchTimeout
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Builtin()
	}
	if deps.Generator == nil {
		deps.Generator = kconfig.NewGenerator(nil, kconfig.Config{})
	}

	return &Manager{
		database:   deps.Database,
		jobs:       deps.Jobs,
		artifacts:  deps.Artifacts,
		catalog:    deps.Catalog,
		generator:  deps.Generator,
		validator:  validate.NewEngine(deps.Catalog),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		config:     cfg,
	}
}

// Jobs returns the job repository
func (m *Manager) Jobs() *db.JobRepository {
	return m.jobs
}

// Artifacts returns the artifact store
func (m *Manager) Artifacts() *storage.ArtifactStore {
	return m.artifacts
}

// Catalog returns the package catalog
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Start enables submissions and starts the maintenance loop
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("build manager already running")
	}
	m.running = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.maintenance()
	}()

	log.Info("Build manager started",
		"ai", m.generator.Enabled(),
		"dispatch", m.dispatcher != nil && m.dispatcher.Enabled(),
		"purge_interval", m.config.PurgeInterval)
	return nil
}

// Stop cancels running pipelines and waits for them. Jobs interrupted this
// way are marked failed.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	log.Info("Build manager stopping")
	m.cancel()
	m.wg.Wait()
	m.inflight.Wait()
	log.Info("Build manager stopped")
	return nil
}

// Wait blocks until every pipeline started so far has returned
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// maintenance purges expired jobs and snapshots the store
func (m *Manager) maintenance() {
	purge := time.NewTicker(m.config.PurgeInterval)
	defer purge.Stop()

	var persist <-chan time.Time
	if m.config.PersistInterval > 0 && m.database != nil {
		t := time.NewTicker(m.config.PersistInterval)
		defer t.Stop()
		persist = t.C
	}

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-purge.C:
			if _, err := m.jobs.PurgeExpired(m.ctx); err != nil {
				log.Warn("Failed to purge expired jobs", "error", err)
			}
		case <-persist:
			if err := m.database.SaveToDisk(); err != nil {
				log.Warn("Failed to snapshot job store", "error", err)
			}
		}
	}
}

// Submit resolves the request, writes the initial artifacts, creates the
// job and starts its pipeline. It returns once the job exists.
func (m *Manager) Submit(ctx context.Context, req Request) (*CreateResult, error) {
	m.mu.RLock()
	running, runCtx := m.running, m.ctx
	m.mu.RUnlock()
	if !running {
		return nil, ErrNotRunning
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	pkgManager, baseImage := m.catalog.Target(req.Distro)
	packages := m.catalog.Resolve(pkgManager, req.Overlays)

	result := m.generator.Generate(ctx, kconfig.Input{
		HardwareRaw: req.HardwareRaw,
		Distro:      req.Distro,
		Mode:        req.Mode,
		Modules:     req.DetectedModules,
	})
	m.metrics.IncKernelConfig(kernelConfigSource(result))
	kernelConfig := result.Text()

	manifest := generate.Manifest{
		JobID:             jobID,
		Distro:            req.Distro,
		Mode:              req.Mode,
		BaseImage:         baseImage,
		PackageManager:    pkgManager,
		Packages:          packages,
		CustomSoftware:    req.CustomSoftware,
		Overlays:          req.Overlays,
		Modules:           req.DetectedModules,
		AIMode:            req.AIMode,
		AIModel:           result.Label(),
		KernelConfigLines: kconfig.LineCount(kernelConfig),
		Created:           time.Now().UTC().Truncate(time.Millisecond),
	}
	script := generate.BuildScript(manifest, m.catalog.ScriptOverlays(pkgManager, req.Overlays))
	manifestJSON, err := generate.ManifestJSON(manifest)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, content := range map[string][]byte{
		generate.FileKernelConfig: []byte(kernelConfig),
		generate.FileBuildScript:  []byte(script),
		generate.FileManifest:     manifestJSON,
	} {
		g.Go(func() error {
			return m.artifacts.Put(gctx, jobID, name, content)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to store initial artifacts: %w", err)
	}

	prefix := storage.JobPrefix(jobID)
	job := &db.Job{
		ID:                jobID,
		Distro:            req.Distro,
		Mode:              req.Mode,
		Status:            db.StatusBuilding,
		Packages:          packages,
		CustomSoftware:    req.CustomSoftware,
		Overlays:          req.Overlays,
		AIModel:           manifest.AIModel,
		KernelConfigLines: manifest.KernelConfigLines,
		R2Prefix:          prefix,
		BuildScriptHash:   generate.SHA256Hex([]byte(script)),
	}
	err = m.jobs.Create(ctx, job,
		fmt.Sprintf("Build job %s created", jobID),
		fmt.Sprintf("AI model: %s", manifest.AIModel),
		fmt.Sprintf("Kernel config: %d lines generated", manifest.KernelConfigLines),
		fmt.Sprintf("Packages: %d overlay + %d custom", len(packages), len(req.CustomSoftware)),
		fmt.Sprintf("Build script stored: %s/%s", prefix, generate.FileBuildScript),
		fmt.Sprintf("Kernel config stored: %s/%s", prefix, generate.FileKernelConfig),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.metrics.IncJobCreated(req.Distro, req.Mode)
	m.metrics.IncJobStatus(string(db.StatusBuilding))

	log.Info("Build job created",
		"job_id", jobID,
		"distro", req.Distro,
		"mode", req.Mode,
		"ai_model", manifest.AIModel,
		"packages", len(packages))

	m.mu.RLock()
	if !m.running {
		m.mu.RUnlock()
		m.handleFailure(jobID, "build manager stopped before the pipeline started")
		return nil, ErrNotRunning
	}
	m.inflight.Add(1)
	m.mu.RUnlock()

	go func() {
		defer m.inflight.Done()
		m.run(runCtx, jobID)
	}()

	return &CreateResult{
		ID:                jobID,
		Status:            string(db.StatusBuilding),
		AIModel:           manifest.AIModel,
		KernelConfigLines: manifest.KernelConfigLines,
		Packages:          len(packages),
		R2Prefix:          prefix,
	}, nil
}

func kernelConfigSource(r kconfig.Result) string {
	switch f := r.(type) {
	case kconfig.Fallback:
		if f.Reason != "" {
			return "fallback_error"
		}
		return "fallback"
	}
	return "ai"
}
