package filter

import (
	"context"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pkg/dsl"
)

// ParamFilterExpr 是请求级 CEL 表达式在 RecommendContext.Params 中的 key
const ParamFilterExpr = "filter_expr"

// ExprFilter 只保留让表达式为 true 的物品。
//
// 表达式来源：
//   - Expr：Pipeline 配置中的固定规则
//   - rctx.Params[ParamFilterExpr]：请求级规则（*dsl.Expr）
//
// 两者同时存在时都需要满足。
type ExprFilter struct {
	Expr *dsl.Expr
}

// NewExprFilter 编译表达式；表达式为空时返回只检查请求级规则的过滤器。
func NewExprFilter(expr string) (*ExprFilter, error) {
	if expr == "" {
		return &ExprFilter{}, nil
	}
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Expr: e}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Expr != nil {
		keep, err := f.Expr.Evaluate(item, rctx)
		if err != nil {
			return false, err
		}
		if !keep {
			return true, nil
		}
	}
	if rctx == nil {
		return false, nil
	}
	if e, ok := rctx.Params[ParamFilterExpr].(*dsl.Expr); ok {
		keep, err := e.Evaluate(item, rctx)
		if err != nil {
			return false, err
		}
		return !keep, nil
	}
	return false, nil
}
