package conv

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// CompareIDs 按“数值优先”的全序比较两个 ID：
// 数字 ID 排在非数字 ID 之前，数字之间按数值比较，非数字之间按字典序比较；
// 数值相等（如 "1" 与 "1.0"）时再按字典序。返回 -1 / 0 / 1。
func CompareIDs(a, b string) int {
	fa, numA := parseNumericID(a)
	fb, numB := parseNumericID(b)
	switch {
	case numA && !numB:
		return -1
	case !numA && numB:
		return 1
	case numA && numB:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	}
	return strings.Compare(a, b)
}

// NaN 无法参与数值比较，按非数字处理
func parseNumericID(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// SortIDs 使用 CompareIDs 原地排序。
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return CompareIDs(ids[i], ids[j]) < 0
	})
}

// FormatID 将 YAML/JSON/CSV 中的 ID 统一为字符串，整数值不带小数点。
func FormatID(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}
