package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"slidecast/internal/config"
	"slidecast/internal/document"
	"slidecast/internal/encoders"
	"slidecast/internal/logging"
	"slidecast/internal/pipeline"
	"slidecast/internal/probecache"
	"slidecast/internal/project"
	"slidecast/internal/segcache"
	"slidecast/internal/store"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// session holds the collaborators a pipeline run needs. Close releases the
// cache database.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	assets   *probecache.Cache
	encoders *encoders.Prober
	segments *segcache.Manager
}

func (c *commandContext) openSession() (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	rasterizer := document.Rasterizer{
		Binary:         cfg.Tools.Pdftoppm,
		DPI:            cfg.Raster.DPI,
		ThumbnailWidth: cfg.Raster.ThumbnailWidth,
		Timeout:        cfg.RasterTimeout(),
	}
	return &session{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		assets:   probecache.New(cfg, st, rasterizer, logger),
		encoders: encoders.NewProber(cfg, st, logger),
		segments: segcache.NewManager(cfg, logger),
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

func (s *session) orchestrator() (*pipeline.Orchestrator, error) {
	return pipeline.New(pipeline.Options{
		Config:   s.cfg,
		Assets:   s.assets,
		Encoders: s.encoders,
		Runs:     s.store,
		Segments: s.segments,
		Logger:   s.logger,
	})
}

// projectJob turns a loaded project into a pipeline job. A non-empty output
// overrides the project's own output path.
func projectJob(p *project.Project, output string) (pipeline.Job, error) {
	params, err := p.Params()
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("project parameters: %w", err)
	}
	out := p.OutputPath()
	if strings.TrimSpace(output) != "" {
		expanded, err := config.ExpandPath(output)
		if err != nil {
			return pipeline.Job{}, err
		}
		out = expanded
	}
	return pipeline.Job{
		DocumentPath: p.DocumentPath(),
		Output:       out,
		Assignments:  p.Assignments(),
		Params:       params,
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
