// Package dsl 提供基于 CEL (Common Expression Language) 的规则表达式，
// 用于候选物品的请求级 / Pipeline 级过滤。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/ncfrec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的布尔表达式，编译一次、对每个物品求值多次，可并发使用。
//
// 可用变量：
//   - item.id / item.name / item.category / item.price / item.score
//   - item.meta / item.features
//   - label.<key>：物品 Label 的 value
//   - rctx.user_id / rctx.scene / rctx.params
//
// 示例：
//   - `item.category == "Electronics"`
//   - `item.price >= 10.0 && item.price <= 100.0`
//   - `item.name.contains("Pro")`
type Expr struct {
	source string
	prg    cel.Program
}

// Compile 编译表达式；语法错误或结果类型不是 bool 时返回 INVALID_INPUT。
func Compile(expr string) (*Expr, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: init cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, issues.Err(), "dsl: compile %q", expr)
	}
	if out := ast.OutputType(); out != cel.BoolType && out != cel.DynType {
		return nil, core.NewDomainError(core.ModuleRank, core.ErrorCodeInvalidInput,
			fmt.Sprintf("dsl: expression %q must return bool, got %s", expr, out))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, err, "dsl: program %q", expr)
	}
	return &Expr{source: expr, prg: prg}, nil
}

// String 返回原始表达式
func (e *Expr) String() string {
	return e.source
}

// Evaluate 对单个物品求值。
func (e *Expr) Evaluate(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := e.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", e.source, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return boolean, got %T", e.source, out.Value())
	}
	return result, nil
}

// Eval 编译并执行一次表达式，空表达式恒为 true。
func Eval(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	e, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return e.Evaluate(item, rctx)
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(it *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any, len(it.Labels))
	for k, v := range it.Labels {
		labels[k] = v.Value
	}

	item := map[string]any{
		"id":       it.ID,
		"score":    it.Score,
		"features": it.Features,
		"meta":     it.Meta,
		"name":     "",
		"category": "",
		"price":    0.0,
	}
	if v, ok := it.Meta[core.MetaName].(string); ok {
		item["name"] = v
	}
	if v, ok := it.Meta[core.MetaCategory].(string); ok {
		item["category"] = v
	}
	if v, ok := it.Meta[core.MetaPrice].(float64); ok {
		item["price"] = v
	}

	rc := map[string]any{}
	if rctx != nil {
		rc["user_id"] = rctx.UserID
		rc["scene"] = rctx.Scene
		rc["params"] = rctx.Params
	}

	return map[string]any{
		"item":  item,
		"label": labels,
		"rctx":  rc,
	}
}
