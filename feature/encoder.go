package feature

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/pkg/conv"
)

// LabelEncoder 把外部 ID 映射为稠密下标 [0, n)。
//
// Fit 时先去重，再按 conv.CompareIDs 升序排列，下标即排序后的位置，
// 因此同一批训练 ID 总是得到相同的编码。拟合后只读，可并发访问。
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder 创建空编码器
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{index: make(map[string]int)}
}

// Fit 基于给定 ID 重建词表。
func (e *LabelEncoder) Fit(ids []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(ids))
	classes := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		classes = append(classes, id)
	}
	conv.SortIDs(classes)
	e.setClasses(classes)
	return e
}

func (e *LabelEncoder) setClasses(classes []string) {
	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
}

// Transform 返回 ID 的下标，未见过的 ID 返回 UNKNOWN_IDENTIFIER。
func (e *LabelEncoder) Transform(id string) (int, error) {
	if idx, ok := e.index[id]; ok {
		return idx, nil
	}
	return 0, core.WrapDomainError(core.ModuleCodec, core.ErrorCodeUnknownIdentifier,
		core.ErrUnknownIdentifier, "codec: id %q not in vocabulary", id)
}

// Lookup 是 Transform 的无错误版本，热路径使用。
func (e *LabelEncoder) Lookup(id string) (int, bool) {
	idx, ok := e.index[id]
	return idx, ok
}

// InverseTransform 返回下标对应的原始 ID。
func (e *LabelEncoder) InverseTransform(index int) (string, error) {
	if index < 0 || index >= len(e.classes) {
		return "", core.NewDomainError(core.ModuleCodec, core.ErrorCodeInvalidInput,
			fmt.Sprintf("codec: index %d out of range [0,%d)", index, len(e.classes)))
	}
	return e.classes[index], nil
}

// Len 返回词表大小
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}

// Classes 返回按下标排列的词表副本
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

func (e *LabelEncoder) MarshalJSON() ([]byte, error) {
	classes := e.classes
	if classes == nil {
		classes = []string{}
	}
	return json.Marshal(classes)
}

// UnmarshalJSON 还原词表；词表中出现重复 ID 视为损坏。
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	var classes []string
	if err := json.Unmarshal(data, &classes); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		if _, ok := seen[c]; ok {
			return fmt.Errorf("codec: duplicate class %q", c)
		}
		seen[c] = struct{}{}
	}
	e.setClasses(classes)
	return nil
}
