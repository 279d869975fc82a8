package model

import "math"

// adam 是 Adam 优化器的状态：一阶/二阶矩与模型参数同形。
// 全连接层按稠密方式更新；Embedding 表只更新本批次出现过的行。
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	step  int

	wm, wv [][][]float64
	bm, bv [][]float64

	um, uv [][]float64
	im, iv [][]float64
}

func newAdam(m *NCFModel, lr, beta1, beta2, eps float64) *adam {
	a := &adam{
		lr:    lr,
		beta1: beta1,
		beta2: beta2,
		eps:   eps,
		wm:    make([][][]float64, len(m.Tower.Weights)),
		wv:    make([][][]float64, len(m.Tower.Weights)),
		bm:    zerosLike(m.Tower.Biases),
		bv:    zerosLike(m.Tower.Biases),
		um:    zerosLike(m.UserEmbedding),
		uv:    zerosLike(m.UserEmbedding),
		im:    zerosLike(m.ItemEmbedding),
		iv:    zerosLike(m.ItemEmbedding),
	}
	for l := range m.Tower.Weights {
		a.wm[l] = zerosLike(m.Tower.Weights[l])
		a.wv[l] = zerosLike(m.Tower.Weights[l])
	}
	return a
}

// apply 执行一步更新
func (a *adam) apply(m *NCFModel, g *gradients) {
	a.step++
	t := float64(a.step)
	lrT := a.lr * math.Sqrt(1-math.Pow(a.beta2, t)) / (1 - math.Pow(a.beta1, t))

	for l := range m.Tower.Weights {
		for j := range m.Tower.Weights[l] {
			a.update(m.Tower.Weights[l][j], g.weights[l][j], a.wm[l][j], a.wv[l][j], lrT)
		}
		a.update(m.Tower.Biases[l], g.biases[l], a.bm[l], a.bv[l], lrT)
	}
	for u, grad := range g.users {
		a.update(m.UserEmbedding[u], grad, a.um[u], a.uv[u], lrT)
	}
	for i, grad := range g.items {
		a.update(m.ItemEmbedding[i], grad, a.im[i], a.iv[i], lrT)
	}
}

func (a *adam) update(p, g, m, v []float64, lrT float64) {
	for k := range p {
		m[k] = a.beta1*m[k] + (1-a.beta1)*g[k]
		v[k] = a.beta2*v[k] + (1-a.beta2)*g[k]*g[k]
		p[k] -= lrT * m[k] / (math.Sqrt(v[k]) + a.eps)
	}
}

// gradients 是一个 batch 的累积梯度
type gradients struct {
	weights [][][]float64
	biases  [][]float64
	users   map[int][]float64
	items   map[int][]float64
}

func newGradients(m *NCFModel) *gradients {
	g := &gradients{
		weights: make([][][]float64, len(m.Tower.Weights)),
		biases:  zerosLike(m.Tower.Biases),
		users:   make(map[int][]float64),
		items:   make(map[int][]float64),
	}
	for l := range m.Tower.Weights {
		g.weights[l] = zerosLike(m.Tower.Weights[l])
	}
	return g
}

func (g *gradients) reset() {
	for l := range g.weights {
		for j := range g.weights[l] {
			clear(g.weights[l][j])
		}
		clear(g.biases[l])
	}
	clear(g.users)
	clear(g.items)
}

func (g *gradients) addEmbedding(table map[int][]float64, row int, grad []float64) {
	acc, ok := table[row]
	if !ok {
		acc = make([]float64, len(grad))
		table[row] = acc
	}
	for k, v := range grad {
		acc[k] += v
	}
}

func zerosLike(src [][]float64) [][]float64 {
	out := make([][]float64, len(src))
	for i, row := range src {
		out[i] = make([]float64, len(row))
	}
	return out
}
