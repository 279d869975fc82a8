package model

import (
	"fmt"
	"math/rand"

	"github.com/rushteam/ncfrec/core"
)

// 默认结构
const (
	DefaultEmbeddingDim = 50
)

// DefaultTowerLayers 是拼接后的 MLP 塔结构，最后一层为线性输出。
var DefaultTowerLayers = []int{128, 64, 32, 1}

// NCFModel 是神经协同过滤模型（Neural Collaborative Filtering）。
//
// 预测流程：
//  1. 分别查用户 / 物品 Embedding 表
//  2. 拼接为 2*EmbeddingDim 的向量
//  3. 送入 MLP 塔，输出一个无界实数
type NCFModel struct {
	EmbeddingDim int

	// UserEmbedding[userIndex] 是该用户的向量
	UserEmbedding [][]float64

	// ItemEmbedding[itemIndex] 是该物品的向量
	ItemEmbedding [][]float64

	Tower *DNNModel
}

// NewNCFModel 按给定词表大小创建随机初始化的模型。
// Embedding 使用 uniform(-0.05, 0.05) 初始化。
func NewNCFModel(numUsers, numItems, embeddingDim int, layers []int, seed int64) *NCFModel {
	if embeddingDim <= 0 {
		embeddingDim = DefaultEmbeddingDim
	}
	if len(layers) == 0 {
		layers = DefaultTowerLayers
	}
	//nolint:gosec // math/rand 用于参数初始化即可
	rng := rand.New(rand.NewSource(seed))
	return &NCFModel{
		EmbeddingDim:  embeddingDim,
		UserEmbedding: randomTable(rng, numUsers, embeddingDim),
		ItemEmbedding: randomTable(rng, numItems, embeddingDim),
		Tower:         NewDNNModel(2*embeddingDim, layers, rng),
	}
}

func randomTable(rng *rand.Rand, rows, dim int) [][]float64 {
	t := make([][]float64, rows)
	for i := range t {
		row := make([]float64, dim)
		for k := range row {
			row[k] = (rng.Float64()*2 - 1) * 0.05
		}
		t[i] = row
	}
	return t
}

func (m *NCFModel) Name() string {
	return "ncf"
}

func (m *NCFModel) NumUsers() int { return len(m.UserEmbedding) }
func (m *NCFModel) NumItems() int { return len(m.ItemEmbedding) }

// Predict 返回原始亲和度分数；下标越界返回 INVALID_INPUT。
func (m *NCFModel) Predict(userIndex, itemIndex int) (float64, error) {
	if userIndex < 0 || userIndex >= len(m.UserEmbedding) {
		return 0, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("ncf: user index %d out of range [0,%d)", userIndex, len(m.UserEmbedding)))
	}
	if itemIndex < 0 || itemIndex >= len(m.ItemEmbedding) {
		return 0, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("ncf: item index %d out of range [0,%d)", itemIndex, len(m.ItemEmbedding)))
	}
	return m.Tower.Forward(m.input(userIndex, itemIndex))
}

func (m *NCFModel) input(userIndex, itemIndex int) []float64 {
	x := make([]float64, 0, 2*m.EmbeddingDim)
	x = append(x, m.UserEmbedding[userIndex]...)
	return append(x, m.ItemEmbedding[itemIndex]...)
}

// Validate 检查 Embedding 表宽度与塔输入维度是否一致。
func (m *NCFModel) Validate() error {
	if m.EmbeddingDim <= 0 {
		return fmt.Errorf("ncf: embedding dim %d", m.EmbeddingDim)
	}
	for i, row := range m.UserEmbedding {
		if len(row) != m.EmbeddingDim {
			return fmt.Errorf("ncf: user embedding %d has width %d, want %d", i, len(row), m.EmbeddingDim)
		}
	}
	for i, row := range m.ItemEmbedding {
		if len(row) != m.EmbeddingDim {
			return fmt.Errorf("ncf: item embedding %d has width %d, want %d", i, len(row), m.EmbeddingDim)
		}
	}
	if m.Tower == nil {
		return fmt.Errorf("ncf: missing tower")
	}
	if m.Tower.InputDim != 2*m.EmbeddingDim {
		return fmt.Errorf("ncf: tower input %d, want %d", m.Tower.InputDim, 2*m.EmbeddingDim)
	}
	return m.Tower.Validate()
}

// Clone 深拷贝模型（训练时保存最佳权重用）
func (m *NCFModel) Clone() *NCFModel {
	return &NCFModel{
		EmbeddingDim:  m.EmbeddingDim,
		UserEmbedding: cloneMatrix(m.UserEmbedding),
		ItemEmbedding: cloneMatrix(m.ItemEmbedding),
		Tower:         m.Tower.Clone(),
	}
}
