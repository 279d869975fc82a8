package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rushteam/ncfrec/core"
)

// DNNModel 是全连接前馈网络（MLP）。
//
// 结构：
//   - 隐藏层使用 ReLU 激活
//   - 最后一层不激活（线性输出）
//
// 推理阶段不做 dropout；dropout 只在 Trainer 中生效。
type DNNModel struct {
	// InputDim 是输入向量维度
	InputDim int

	// Layers 是每层的神经元数量，例如 [128, 64, 32, 1]
	Layers []int

	// Weights 是每层的权重矩阵
	// weights[layer][neuron][input] = weight
	Weights [][][]float64

	// Biases 是每层的偏置
	// biases[layer][neuron] = bias
	Biases [][]float64
}

// NewDNNModel 创建 DNN 并用 Glorot uniform 初始化权重，偏置为 0。
func NewDNNModel(inputDim int, layers []int, rng *rand.Rand) *DNNModel {
	m := &DNNModel{
		InputDim: inputDim,
		Layers:   append([]int(nil), layers...),
		Weights:  make([][][]float64, len(layers)),
		Biases:   make([][]float64, len(layers)),
	}
	prev := inputDim
	for l, size := range layers {
		limit := math.Sqrt(6.0 / float64(prev+size))
		m.Weights[l] = make([][]float64, size)
		m.Biases[l] = make([]float64, size)
		for j := 0; j < size; j++ {
			row := make([]float64, prev)
			for k := range row {
				row[k] = (rng.Float64()*2 - 1) * limit
			}
			m.Weights[l][j] = row
		}
		prev = size
	}
	return m
}

func (m *DNNModel) Name() string {
	return "dnn"
}

// Forward 前向传播，返回输出层的第一个神经元。
func (m *DNNModel) Forward(input []float64) (float64, error) {
	if len(input) != m.InputDim {
		return 0, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("dnn: input dim %d, want %d", len(input), m.InputDim))
	}
	current := input
	last := len(m.Layers) - 1
	for layer := range m.Layers {
		next := make([]float64, m.Layers[layer])
		for j, w := range m.Weights[layer] {
			sum := m.Biases[layer][j] + dot(w, current)
			// ReLU 激活（最后一层除外）
			if layer < last {
				next[j] = relu(sum)
			} else {
				next[j] = sum
			}
		}
		current = next
	}
	if len(current) == 0 {
		return 0, nil
	}
	return current[0], nil
}

// Validate 检查各层权重形状与 Layers/InputDim 一致。
func (m *DNNModel) Validate() error {
	if m.InputDim <= 0 || len(m.Layers) == 0 {
		return fmt.Errorf("dnn: empty network (input %d, layers %v)", m.InputDim, m.Layers)
	}
	if m.Layers[len(m.Layers)-1] != 1 {
		return fmt.Errorf("dnn: output layer must have 1 unit, got %d", m.Layers[len(m.Layers)-1])
	}
	if len(m.Weights) != len(m.Layers) || len(m.Biases) != len(m.Layers) {
		return fmt.Errorf("dnn: %d layers but %d weight / %d bias tensors", len(m.Layers), len(m.Weights), len(m.Biases))
	}
	prev := m.InputDim
	for l, size := range m.Layers {
		if len(m.Weights[l]) != size || len(m.Biases[l]) != size {
			return fmt.Errorf("dnn: layer %d expects %d units", l, size)
		}
		for j, row := range m.Weights[l] {
			if len(row) != prev {
				return fmt.Errorf("dnn: layer %d neuron %d has %d inputs, want %d", l, j, len(row), prev)
			}
		}
		prev = size
	}
	return nil
}

// Clone 深拷贝全部参数
func (m *DNNModel) Clone() *DNNModel {
	out := &DNNModel{
		InputDim: m.InputDim,
		Layers:   append([]int(nil), m.Layers...),
		Weights:  make([][][]float64, len(m.Weights)),
		Biases:   make([][]float64, len(m.Biases)),
	}
	for l := range m.Weights {
		out.Weights[l] = cloneMatrix(m.Weights[l])
	}
	for l := range m.Biases {
		out.Biases[l] = append([]float64(nil), m.Biases[l]...)
	}
	return out
}

// relu ReLU 激活函数。
func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func cloneMatrix(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i, row := range src {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
