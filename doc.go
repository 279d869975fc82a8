// Package ncfrec 是基于神经协同过滤（NCF）的商品排序引擎。
//
// 设计要点：
// - Pipeline-first: 排序链路通过 Node 串联（Filter → Rank → ReRank → PostProcess），可由 YAML 配置
// - 显式依赖: Engine 显式构造、注入目录与购买记录，编码器与模型加载后只读共享
// - 冷启动不报错: 未知用户返回空结果，未知物品静默丢弃
package ncfrec

import (
	"github.com/rushteam/ncfrec/pipeline"
	"github.com/rushteam/ncfrec/recommend"
)

// 轻量 facade：便于直接 import "ncfrec" 使用核心抽象。
type (
	Engine   = recommend.Engine
	Options  = recommend.Options
	Request  = recommend.Request
	Response = recommend.Response

	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
)

const (
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// New 创建排序引擎，见 recommend.New。
//
//nolint:gocritic // hugeParam
func New(opts Options) (*Engine, error) {
	return recommend.New(opts)
}
