package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/ncfrec/artifact"
	"github.com/rushteam/ncfrec/catalog"
	"github.com/rushteam/ncfrec/config"
	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/metrics"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/pkg/logging"
	"github.com/rushteam/ncfrec/recommend"
	"github.com/rushteam/ncfrec/store"
)

// app 持有一次命令执行期间打开的配置、日志与存储连接。
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	kv     core.KeyValueStore

	catalog core.Catalog
	history core.PurchaseHistory
	loaded  bool
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logging.New(cfg.Log)}, nil
}

func (a *app) Close() error {
	if a.kv == nil {
		return nil
	}
	return a.kv.Close()
}

// store 按 artifact.backend 打开共享的 KV 存储，file 后端返回 nil。
func (a *app) store(ctx context.Context) (core.KeyValueStore, error) {
	if a.kv != nil {
		return a.kv, nil
	}
	switch a.cfg.Artifact.Backend {
	case config.BackendRedis:
		s, err := store.NewRedisStore(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.kv = s
	case config.BackendBadger:
		s, err := store.OpenBadgerStore(a.cfg.Badger)
		if err != nil {
			return nil, err
		}
		a.kv = s
	}
	return a.kv, nil
}

func (a *app) repository(ctx context.Context) (artifact.Repository, error) {
	if a.cfg.Artifact.Backend == config.BackendFile {
		return artifact.NewFileRepository(a.cfg.Artifact.Path), nil
	}
	s, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	return artifact.NewStoreRepository(s, a.cfg.Artifact.KeyPrefix), nil
}

// collaborators 返回商品目录与购买记录；CSV 路径为空时对应项为 nil。
func (a *app) collaborators(ctx context.Context) (core.Catalog, core.PurchaseHistory, error) {
	if a.loaded {
		return a.catalog, a.history, nil
	}
	if a.cfg.Data.Backend == config.DataStore {
		s, err := a.store(ctx)
		if err != nil {
			return nil, nil, err
		}
		a.catalog = catalog.NewStoreCatalog(s, "")
		a.history = catalog.NewStorePurchaseHistory(s, "")
		a.loaded = true
		return a.catalog, a.history, nil
	}

	if a.cfg.Data.Products != "" {
		m, err := catalog.LoadCSVFile(a.cfg.Data.Products)
		if err != nil {
			return nil, nil, err
		}
		a.catalog = m
	}
	if a.cfg.Data.Interactions != "" {
		ps, err := catalog.ReadInteractionsFile(a.cfg.Data.Interactions)
		if err != nil {
			return nil, nil, err
		}
		a.history = catalog.NewInteractionLog(ps)
	}
	a.loaded = true
	return a.catalog, a.history, nil
}

// engine 加载产物并按配置组装 Engine。
func (a *app) engine(ctx context.Context, reg prometheus.Registerer) (*recommend.Engine, error) {
	repo, err := a.repository(ctx)
	if err != nil {
		return nil, err
	}
	cat, history, err := a.collaborators(ctx)
	if err != nil {
		return nil, err
	}

	opts := recommend.Options{
		Catalog:     cat,
		History:     history,
		Logger:      a.logger,
		MaxTopN:     a.cfg.Engine.MaxTopN,
		Concurrency: a.cfg.Engine.Concurrency,
		MinRating:   a.cfg.Engine.MinRating,
		MaxRating:   a.cfg.Engine.MaxRating,
	}
	if reg != nil {
		opts.Metrics = metrics.NewRecorder(reg)
	}
	if a.cfg.Engine.Pipeline != "" {
		p, err := pipeline.LoadFromFile(a.cfg.Engine.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("load pipeline %s: %w", a.cfg.Engine.Pipeline, err)
		}
		opts.Pipeline = p
	}
	if a.cfg.Data.Metadata == config.MetadataFeast {
		fc, err := catalog.NewFeastCatalog(a.cfg.Feast)
		if err != nil {
			return nil, err
		}
		opts.Metadata = fc
	}

	e, err := recommend.Load(ctx, repo, opts)
	if err != nil {
		if core.IsCorruptArtifact(err) {
			return nil, errors.Join(err, errors.New("run `ncfrec train` to produce a model artifact"))
		}
		return nil, err
	}
	return e, nil
}
