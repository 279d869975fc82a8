package rank

import (
	"math"

	"github.com/rushteam/ncfrec/feature"
	"github.com/rushteam/ncfrec/model"
)

// 默认评分区间
const (
	DefaultMinRating = 0.0
	DefaultMaxRating = 5.0
)

// Scorer 把外部 ID 编码后交给模型预测，并把结果裁剪到评分区间。
// Codec 与 Model 只读共享，Scorer 可并发使用。
type Scorer struct {
	Codec *feature.IdentityCodec
	Model model.AffinityModel

	MinRating float64
	MaxRating float64
}

func NewScorer(codec *feature.IdentityCodec, m model.AffinityModel) *Scorer {
	return &Scorer{
		Codec:     codec,
		Model:     m,
		MinRating: DefaultMinRating,
		MaxRating: DefaultMaxRating,
	}
}

// PredictRating 返回裁剪后的预测评分；用户或物品不在词表中时返回 false。
func (s *Scorer) PredictRating(userID, itemID string) (float64, bool) {
	u, ok := s.Codec.LookupUser(userID)
	if !ok {
		return 0, false
	}
	i, ok := s.Codec.LookupItem(itemID)
	if !ok {
		return 0, false
	}
	return s.predict(u, i)
}

func (s *Scorer) predict(u, i int) (float64, bool) {
	raw, err := s.Model.Predict(u, i)
	if err != nil || math.IsNaN(raw) {
		return 0, false
	}
	return s.Clamp(raw), true
}

// Clamp 把原始分数裁剪到 [MinRating, MaxRating]
func (s *Scorer) Clamp(v float64) float64 {
	return math.Min(math.Max(v, s.MinRating), s.MaxRating)
}

// KnowsUser 判断用户是否在训练词表中
func (s *Scorer) KnowsUser(userID string) bool {
	_, ok := s.Codec.LookupUser(userID)
	return ok
}
