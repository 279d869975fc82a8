package filter

import (
	"context"

	"github.com/rushteam/ncfrec/core"
)

// paramPurchasedLoaded 标记本次请求已合并过购买记录
const paramPurchasedLoaded = "purchased_loaded"

// PurchasedFilter 过滤掉用户已购买的物品。
//
// 每个请求只读取一次 History，结果合并进 rctx.Exclude，之后按排除集合判断。
// 读取失败返回 UNAVAILABLE，不会放行已购买的物品。
type PurchasedFilter struct {
	History core.PurchaseHistory
}

func NewPurchasedFilter(history core.PurchaseHistory) *PurchasedFilter {
	return &PurchasedFilter{History: history}
}

func (f *PurchasedFilter) Name() string {
	return "filter.purchased"
}

func (f *PurchasedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil || rctx == nil {
		return false, nil
	}
	if err := f.Prepare(ctx, rctx); err != nil {
		return false, err
	}
	return rctx.IsExcluded(item.ID), nil
}

// Prepare 读取用户购买记录并合并进排除集合，成功后本请求内不再重复读取。
func (f *PurchasedFilter) Prepare(ctx context.Context, rctx *core.RecommendContext) error {
	if rctx == nil || rctx.UserID == "" || f.History == nil {
		return nil
	}
	if loaded, _ := rctx.Params[paramPurchasedLoaded].(bool); loaded {
		return nil
	}

	ids, err := f.History.PurchasedItems(ctx, rctx.UserID)
	if err != nil {
		return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, err,
			"filter: purchased items for %s", rctx.UserID)
	}
	if rctx.Exclude == nil {
		rctx.Exclude = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		rctx.Exclude[id] = struct{}{}
	}
	if rctx.Params == nil {
		rctx.Params = make(map[string]any)
	}
	rctx.Params[paramPurchasedLoaded] = true
	return nil
}
