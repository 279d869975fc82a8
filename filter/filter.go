package filter

import (
	"context"

	"github.com/rushteam/ncfrec/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 是可选接口：FilterNode 在逐个判断前调用一次 Prepare，
// Prepare 出错时整个节点失败，不会退化为放行。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) error
}
