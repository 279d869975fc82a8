package filter

import (
	"context"

	"github.com/rushteam/ncfrec/core"
)

// ExcludeFilter 过滤掉请求排除集合（通常是已购买物品）中的物品，
// 以及 ItemIDs 中配置的全局屏蔽物品。
type ExcludeFilter struct {
	ItemIDs []string

	blocked map[string]struct{}
}

func NewExcludeFilter(itemIDs []string) *ExcludeFilter {
	blocked := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		blocked[id] = struct{}{}
	}
	return &ExcludeFilter{ItemIDs: itemIDs, blocked: blocked}
}

func (f *ExcludeFilter) Name() string {
	return "filter.exclude"
}

func (f *ExcludeFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if rctx != nil && rctx.IsExcluded(item.ID) {
		return true, nil
	}
	_, ok := f.blocked[item.ID]
	return ok, nil
}
