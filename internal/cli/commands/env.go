package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conduit-lang/contenttype/internal/app"
	"github.com/conduit-lang/contenttype/internal/cli/ui"
	"github.com/conduit-lang/contenttype/internal/config"
	"github.com/conduit-lang/contenttype/internal/content"
)

// loadConfig reads the configuration named by --config
func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger builds the process logger. One-shot commands log at warn or above
// unless --verbose is set.
func (f *globalFlags) logger(cfg *config.Config, quiet bool) (*zap.Logger, error) {
	logCfg := *cfg
	if quiet && !f.verbose {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Log.Level)); err == nil && level < zapcore.WarnLevel {
			logCfg.Log.Level = zapcore.WarnLevel.String()
		}
	}
	return logCfg.NewLogger()
}

// context carries the --actor user, if any
func (f *globalFlags) context(ctx context.Context) context.Context {
	if f.actorID > 0 {
		return content.WithActor(ctx, &content.Actor{ID: f.actorID})
	}
	return ctx
}

// openApp loads configuration and starts the engine for a one-shot command
func (f *globalFlags) openApp(ctx context.Context) (*app.App, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := f.logger(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return app.New(ctx, cfg, logger)
}

// findType resolves a content type by ID or slug, suggesting near misses
func findType(ctx context.Context, engine *content.Service, ref string) (*content.ContentType, error) {
	var (
		ct  *content.ContentType
		err error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		ct, err = engine.GetContentType(ctx, id)
	} else {
		ct, err = engine.GetContentTypeBy(ctx, "slug", ref)
	}
	if err == nil || !content.IsNotFound(err) {
		return ct, err
	}

	types, lerr := engine.GetContentTypes(ctx, content.ContentTypeQuery{})
	if lerr != nil {
		return nil, errors.Join(err, lerr)
	}
	slugs := make([]string, 0, len(types))
	for _, t := range types {
		slugs = append(slugs, t.Slug)
	}
	return nil, &ui.NotFoundError{What: "content type", Name: ref, Suggestions: ui.FindSimilar(ref, slugs, 3)}
}

// findContent resolves an item of ct by ID or slug
func findContent(ctx context.Context, engine *content.Service, ct *content.ContentType, ref string) (*content.Content, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return engine.GetContent(ctx, ct.ID, id)
	}
	return engine.GetContentBy(ctx, ct.ID, "slug", ref)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
