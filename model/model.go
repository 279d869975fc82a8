package model

// AffinityModel 是排序阶段的最小抽象：输入（用户下标, 物品下标），输出原始亲和度分数。
// 输出不做截断，由排序引擎负责裁剪到评分区间。
//
// 实现必须在加载后只读，可被多个 goroutine 共享。
type AffinityModel interface {
	Name() string
	Predict(userIndex, itemIndex int) (float64, error)
	NumUsers() int
	NumItems() int
}
