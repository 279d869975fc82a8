// Package builders 注册内置 Node 的配置构建器。
package builders

import (
	"fmt"

	"github.com/rushteam/ncfrec/config"
	"github.com/rushteam/ncfrec/feature"
	"github.com/rushteam/ncfrec/filter"
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/pkg/conv"
	"github.com/rushteam/ncfrec/rank"
	"github.com/rushteam/ncfrec/rerank"
)

func init() {
	config.Register("filter", BuildFilterNode)
	config.Register("filter.exclude", BuildExcludeNode)
	config.Register("filter.expr", BuildExprNode)
	config.Register("filter.purchased", BuildPurchasedNode)
	config.Register("rank.ncf", BuildNCFNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("postprocess.catalog", BuildCatalogNode)
}

// BuildExcludeNode 配置：ids 为全局屏蔽的物品；请求排除集合总是生效。
func BuildExcludeNode(_ config.Deps, cfg map[string]any) (pipeline.Node, error) {
	f, err := buildExclude(cfg)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

// BuildExprNode 配置：expr 为固定的 CEL 规则，可为空（只执行请求级规则）。
func BuildExprNode(_ config.Deps, cfg map[string]any) (pipeline.Node, error) {
	f, err := filter.NewExprFilter(conv.ConfigGet(cfg, "expr", ""))
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

// BuildPurchasedNode 排除 Deps.History 中用户已购买的物品。
func BuildPurchasedNode(deps config.Deps, _ map[string]any) (pipeline.Node, error) {
	if deps.History == nil {
		return nil, fmt.Errorf("filter.purchased requires a purchase history")
	}
	return &filter.FilterNode{Filters: []filter.Filter{filter.NewPurchasedFilter(deps.History)}}, nil
}

// BuildFilterNode 组合多个过滤器：
//
//	filters:
//	  - type: exclude
//	    ids: [7]
//	  - type: expr
//	    expr: item.price < 100.0
func BuildFilterNode(deps config.Deps, cfg map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for i, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filters[%d]: expected map, got %T", i, fc)
		}
		switch filterType := conv.ConfigGet(filterMap, "type", ""); filterType {
		case "exclude":
			f, err := buildExclude(filterMap)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(filterMap, "expr", ""))
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		case "purchased":
			if deps.History == nil {
				return nil, fmt.Errorf("filters[%d]: purchased requires a purchase history", i)
			}
			filters = append(filters, filter.NewPurchasedFilter(deps.History))
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}

// BuildNCFNode 配置：concurrency（默认取 Deps.Concurrency）。
func BuildNCFNode(deps config.Deps, cfg map[string]any) (pipeline.Node, error) {
	if deps.Scorer == nil {
		return nil, fmt.Errorf("rank.ncf requires a scorer")
	}
	concurrency := conv.ConfigGetInt64(cfg, "concurrency", int64(deps.Concurrency))
	if concurrency < 0 {
		return nil, fmt.Errorf("rank.ncf: concurrency must be >= 0, got %d", concurrency)
	}
	return &rank.NCFNode{
		Scorer:      deps.Scorer,
		Concurrency: int(concurrency),
		Metrics:     deps.Metrics,
	}, nil
}

// BuildTopNNode 配置：n 为截断上限，<= 0 时只按请求的 TopN 截断。
func BuildTopNNode(_ config.Deps, cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
}

// BuildDiversityNode 配置：max_per_category（默认 1）。
func BuildDiversityNode(_ config.Deps, cfg map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{MaxPerCategory: int(conv.ConfigGetInt64(cfg, "max_per_category", 1))}, nil
}

// BuildCatalogNode 使用 Deps.Metadata 作为目录字段来源。
func BuildCatalogNode(deps config.Deps, _ map[string]any) (pipeline.Node, error) {
	return &feature.CatalogEnrichNode{Source: deps.Metadata}, nil
}

func buildExclude(cfg map[string]any) (*filter.ExcludeFilter, error) {
	ids, err := conv.ConfigGetStrings(cfg, "ids")
	if err != nil {
		return nil, err
	}
	return filter.NewExcludeFilter(ids), nil
}
