package config

import (
	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/metrics"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/rank"
)

// Deps 是构建 Node 时需要的运行时依赖，配置文件里只放参数。
type Deps struct {
	// Scorer 供 rank.ncf 使用
	Scorer *rank.Scorer

	// Metadata 是可选的目录字段来源，为空时使用候选行自带的字段
	Metadata core.Catalog

	// History 供 filter.purchased 使用，可为空
	History core.PurchaseHistory

	// Metrics 可为空
	Metrics *metrics.Recorder

	// Concurrency 是 rank.ncf 未配置 concurrency 时的默认并发数
	Concurrency int
}

// DefaultFactory 返回绑定了 deps 的 NodeFactory，包含所有通过 Register 注册的 Node 类型。
func DefaultFactory(deps Deps) *pipeline.NodeFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range defaultBuilders {
		b := builder
		f.Register(typeName, func(cfg map[string]any) (pipeline.Node, error) {
			return b(deps, cfg)
		})
	}
	return f
}

// BuildPipeline 校验节点类型后用 DefaultFactory(deps) 构建 Pipeline。
func BuildPipeline(cfg *pipeline.Config, deps Deps) (*pipeline.Pipeline, error) {
	if cfg == nil {
		cfg = pipeline.DefaultConfig()
	}
	if err := ValidatePipelineConfig(cfg); err != nil {
		return nil, err
	}
	return cfg.BuildPipeline(DefaultFactory(deps))
}
