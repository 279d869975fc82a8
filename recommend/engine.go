// Package recommend 提供排序引擎：给定用户与候选商品，返回预测评分最高的 Top-N。
//
// Engine 由显式构造得到，编码器与模型加载后只读，可被多个 goroutine 共享。
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rushteam/ncfrec/artifact"
	"github.com/rushteam/ncfrec/config"
	_ "github.com/rushteam/ncfrec/config/builders" // 注册内置 Node
	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/feature"
	"github.com/rushteam/ncfrec/filter"
	"github.com/rushteam/ncfrec/metrics"
	"github.com/rushteam/ncfrec/model"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/pkg/dsl"
	"github.com/rushteam/ncfrec/rank"
)

// Options 是 Engine 的构造参数。
type Options struct {
	Codec *feature.IdentityCodec
	Model model.AffinityModel

	// Catalog 可选：请求未携带候选时作为全量候选
	Catalog core.Catalog

	// History 可选：RecommendForUser 与 filter.purchased 节点用它取已购买物品
	History core.PurchaseHistory

	// Metadata 可选：目录字段来源（例如 Feast），为空时使用候选行
	Metadata core.Catalog

	// Pipeline 为空时使用 pipeline.DefaultConfig()
	Pipeline *pipeline.Config

	Logger  zerolog.Logger
	Metrics *metrics.Recorder

	// MaxTopN > 0 时，TopN 超过它的请求返回 INVALID_INPUT；<= 0 表示不设上限
	MaxTopN     int
	Concurrency int

	// MinRating / MaxRating 都为 0 时使用 [0, 5]
	MinRating float64
	MaxRating float64
}

// Engine 是排序引擎。
type Engine struct {
	scorer   *rank.Scorer
	pipeline *pipeline.Pipeline
	catalog  core.Catalog
	history  core.PurchaseHistory
	logger   zerolog.Logger
	metrics  *metrics.Recorder
	maxTopN  int
	validate *validator.Validate
}

// New 创建 Engine。
//
//nolint:gocritic // hugeParam: opts 只在构造时使用
func New(opts Options) (*Engine, error) {
	if opts.Codec == nil || opts.Model == nil {
		return nil, core.NewDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, "recommend: codec and model are required")
	}
	if opts.Codec.NumUsers() > opts.Model.NumUsers() || opts.Codec.NumItems() > opts.Model.NumItems() {
		return nil, core.NewDomainError(core.ModuleRank, core.ErrorCodeInvalidInput,
			fmt.Sprintf("recommend: codec vocabulary (%d users, %d items) exceeds model tables (%d, %d)",
				opts.Codec.NumUsers(), opts.Codec.NumItems(), opts.Model.NumUsers(), opts.Model.NumItems()))
	}

	scorer := rank.NewScorer(opts.Codec, opts.Model)
	if opts.MinRating != 0 || opts.MaxRating != 0 {
		if opts.MinRating >= opts.MaxRating {
			return nil, core.NewDomainError(core.ModuleRank, core.ErrorCodeInvalidInput,
				fmt.Sprintf("recommend: invalid rating bounds [%v, %v]", opts.MinRating, opts.MaxRating))
		}
		scorer.MinRating, scorer.MaxRating = opts.MinRating, opts.MaxRating
	}

	p, err := config.BuildPipeline(opts.Pipeline, config.Deps{
		Scorer:      scorer,
		Metadata:    opts.Metadata,
		History:     opts.History,
		Metrics:     opts.Metrics,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	e := &Engine{
		scorer:   scorer,
		pipeline: p,
		catalog:  opts.Catalog,
		history:  opts.History,
		logger:   opts.Logger.With().Str("component", "recommend").Logger(),
		metrics:  opts.Metrics,
		maxTopN:  opts.MaxTopN,
		validate: validator.New(),
	}
	e.metrics.SetVocabulary(opts.Codec.NumUsers(), opts.Codec.NumItems())
	e.logger.Info().
		Str("model", opts.Model.Name()).
		Int("users", opts.Codec.NumUsers()).
		Int("items", opts.Codec.NumItems()).
		Str("pipeline", p.Name).
		Msg("engine ready")
	return e, nil
}

// NewFromBundle 用已加载的产物创建 Engine，忽略 opts 中的 Codec 与 Model。
//
//nolint:gocritic // hugeParam
func NewFromBundle(b *artifact.Bundle, opts Options) (*Engine, error) {
	if b == nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, "recommend: nil bundle")
	}
	opts.Codec = b.Codec
	opts.Model = b.Model
	return New(opts)
}

// Load 从仓库加载产物并创建 Engine。产物缺失或损坏时返回 CORRUPT_ARTIFACT。
//
//nolint:gocritic // hugeParam
func Load(ctx context.Context, repo artifact.Repository, opts Options) (*Engine, error) {
	b, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewFromBundle(b, opts)
}

// Recommend 返回用户在候选集上预测评分最高的 TopN 条记录。
//
// 未知用户返回空结果与 nil error；未知物品静默丢弃。
//
//nolint:gocritic // hugeParam: req 按值传递
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	logger := e.logger.With().
		Str("request_id", req.RequestID).
		Str("user_id", req.UserID).
		Logger()

	resp, err := e.recommend(ctx, req, logger)
	elapsed := time.Since(start)
	switch {
	case err != nil && core.IsInvalidInput(err):
		e.metrics.ObserveRequest(metrics.OutcomeInvalid, elapsed)
		logger.Debug().Err(err).Msg("rejected recommendation request")
		return nil, err
	case err != nil:
		e.metrics.ObserveRequest(metrics.OutcomeError, elapsed)
		logger.Error().Err(err).Msg("recommendation failed")
		return nil, err
	case resp.ColdStart:
		e.metrics.ObserveRequest(metrics.OutcomeColdStart, elapsed)
	default:
		e.metrics.ObserveRequest(metrics.OutcomeOK, elapsed)
	}

	resp.LatencyMS = elapsed.Milliseconds()
	logger.Debug().
		Int("candidates", resp.Candidates).
		Int("scored", resp.Scored).
		Int("returned", len(resp.Items)).
		Bool("cold_start", resp.ColdStart).
		Int64("latency_ms", resp.LatencyMS).
		Msg("recommendation complete")
	return resp, nil
}

//nolint:gocritic // hugeParam
func (e *Engine) recommend(ctx context.Context, req Request, logger zerolog.Logger) (*Response, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, core.ErrInvalidInput,
			"invalid request: %v", err)
	}
	if req.TopN <= 0 {
		return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, core.ErrInvalidInput,
			"top_n must be > 0, got %d", req.TopN)
	}
	if e.maxTopN > 0 && req.TopN > e.maxTopN {
		return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, core.ErrInvalidInput,
			"top_n %d exceeds max_top_n %d", req.TopN, e.maxTopN)
	}

	rctx := core.NewRecommendContext(req.UserID, req.TopN, req.Exclude)
	rctx.RequestID = req.RequestID
	if req.Filter != "" {
		expr, err := dsl.Compile(req.Filter)
		if err != nil {
			return nil, err
		}
		rctx.Params[filter.ParamFilterExpr] = expr
	}

	candidates := req.Candidates
	if len(candidates) == 0 {
		if e.catalog == nil {
			return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, core.ErrInvalidInput,
				"no candidates given and no catalog configured")
		}
		var err error
		candidates, err = e.catalog.ListItems(ctx)
		if err != nil {
			return nil, fmt.Errorf("list catalog %s: %w", e.catalog.Name(), err)
		}
		logger.Debug().Str("catalog", e.catalog.Name()).Int("items", len(candidates)).Msg("using catalog as candidates")
	}

	items := candidateItems(candidates)
	rctx.Stats.Candidates = len(items)
	if !e.scorer.KnowsUser(req.UserID) {
		logger.Debug().Msg("unknown user, skipping scoring")
	}

	out, err := e.pipeline.Run(ctx, rctx, items)
	if err != nil {
		return nil, err
	}
	recs, err := feature.ToRecommendations(out)
	if err != nil {
		return nil, err
	}

	return &Response{
		Items:      recs,
		RequestID:  req.RequestID,
		Candidates: rctx.Stats.Candidates,
		Scored:     rctx.Stats.Scored,
		ColdStart:  rctx.Stats.ColdStart,
	}, nil
}

// candidateItems 按首次出现去重，同 ID 保留第一行。
func candidateItems(rows []core.CatalogItem) []*core.Item {
	seen := make(map[string]struct{}, len(rows))
	items := make([]*core.Item, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		items = append(items, core.NewItemFromCatalog(row))
	}
	return items
}

// RecommendForUser 以目录全量为候选，排除用户已购买的物品。
func (e *Engine) RecommendForUser(ctx context.Context, userID string, topN int) (*Response, error) {
	var exclude []string
	if e.history != nil {
		purchased, err := e.history.PurchasedItems(ctx, userID)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, err,
				"purchase history for %s", userID)
		}
		exclude = purchased
	}
	return e.Recommend(ctx, Request{UserID: userID, TopN: topN, Exclude: exclude})
}

// PredictRating 返回裁剪后的预测评分；用户或物品未知时返回 false。
func (e *Engine) PredictRating(userID, itemID string) (float64, bool) {
	return e.scorer.PredictRating(userID, itemID)
}

// Info 返回当前模型与词表大小。
func (e *Engine) Info() Info {
	return Info{
		Model:    e.scorer.Model.Name(),
		Users:    e.scorer.Codec.NumUsers(),
		Items:    e.scorer.Codec.NumItems(),
		Pipeline: e.pipeline.Name,
	}
}
