// Package utils 提供推荐链路上的通用小工具（Label 等）。
package utils

import "strconv"

// Label 是推荐链路中的解释信息：可追踪、可透传到响应。
// Source 标记写入阶段：filter / rank / rerank / postprocess。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// 常用 Label 来源
const (
	SourceFilter      = "filter"
	SourceRank        = "rank"
	SourceRerank      = "rerank"
	SourcePostProcess = "postprocess"
)

// StringLabel 构造字符串 Label
func StringLabel(value, source string) Label {
	return Label{Value: value, Source: source}
}

// FloatLabel 构造数值 Label，保留 4 位小数
func FloatLabel(value float64, source string) Label {
	return Label{Value: strconv.FormatFloat(value, 'f', 4, 64), Source: source}
}

// MergeLabel 合并同名 Label：Value 以 '|' 累积，Source 以 ',' 累积。
// 任一方 Value 为空时直接取另一方。
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := Label{Value: existing.Value + "|" + incoming.Value}
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "", incoming.Source == existing.Source:
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
