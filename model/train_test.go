package model

import (
	"context"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/core"
)

// syntheticSamples 生成可学习的评分：用户偏置 + 物品偏置
func syntheticSamples(users, items int) []Sample {
	var out []Sample
	for u := 0; u < users; u++ {
		for i := 0; i < items; i++ {
			r := 1.5 + 0.5*float64(u%4) + 0.4*float64(i%3)
			out = append(out, Sample{User: u, Item: i, Rating: r})
		}
	}
	return out
}

func testTrainerConfig() TrainerConfig {
	cfg := DefaultTrainerConfig()
	cfg.LearningRate = 0.01
	cfg.BatchSize = 16
	cfg.Epochs = 40
	cfg.Patience = 40
	return cfg
}

func TestTrainer_ReducesLoss(t *testing.T) {
	samples := syntheticSamples(12, 15)
	m := NewNCFModel(12, 15, 8, []int{16, 8, 1}, 42)
	before := meanSquaredError(m, samples)

	tr := NewTrainer(testTrainerConfig(), zerolog.Nop())
	hist, err := tr.Fit(context.Background(), m, samples)
	require.NoError(t, err)

	after := meanSquaredError(m, samples)
	assert.Less(t, after, before/2)
	assert.Equal(t, 144, hist.TrainSize)
	assert.Equal(t, 36, hist.ValSize)
	assert.Len(t, hist.TrainLoss, len(hist.ValLoss))
	assert.Len(t, hist.LearningRate, len(hist.ValLoss))
	assert.Greater(t, hist.ValRMSE, 0.0)
	assert.GreaterOrEqual(t, hist.ValRMSE, hist.ValMAE)
}

func TestTrainer_RestoresBestWeights(t *testing.T) {
	samples := syntheticSamples(6, 8)
	cfg := testTrainerConfig()
	cfg.Epochs = 15
	m := NewNCFModel(6, 8, 4, []int{8, 1}, 1)

	hist, err := NewTrainer(cfg, zerolog.Nop()).Fit(context.Background(), m, samples)
	require.NoError(t, err)
	require.GreaterOrEqual(t, hist.BestEpoch, 0)

	minLoss := hist.ValLoss[0]
	for _, v := range hist.ValLoss {
		minLoss = min(minLoss, v)
	}
	assert.Equal(t, minLoss, hist.ValLoss[hist.BestEpoch])

	// 复现同一划分，验证当前权重就是最佳轮次的权重
	_, val := splitSamples(samples, cfg.ValidationSplit, rand.New(rand.NewSource(cfg.Seed)))
	assert.InDelta(t, hist.ValLoss[hist.BestEpoch], meanSquaredError(m, val), 1e-9)
}

func TestTrainer_LearningRateSchedule(t *testing.T) {
	samples := syntheticSamples(6, 8)
	cfg := testTrainerConfig()
	cfg.Epochs = 25
	m := NewNCFModel(6, 8, 4, []int{8, 1}, 1)

	hist, err := NewTrainer(cfg, zerolog.Nop()).Fit(context.Background(), m, samples)
	require.NoError(t, err)
	assert.Equal(t, cfg.LearningRate, hist.LearningRate[0])
	for i := 1; i < len(hist.LearningRate); i++ {
		assert.LessOrEqual(t, hist.LearningRate[i], hist.LearningRate[i-1])
		assert.GreaterOrEqual(t, hist.LearningRate[i], cfg.MinLR)
	}
}

func TestTrainer_Deterministic(t *testing.T) {
	samples := syntheticSamples(5, 5)
	cfg := testTrainerConfig()
	cfg.Epochs = 5

	a := NewNCFModel(5, 5, 4, []int{8, 1}, 9)
	b := NewNCFModel(5, 5, 4, []int{8, 1}, 9)
	_, err := NewTrainer(cfg, zerolog.Nop()).Fit(context.Background(), a, append([]Sample(nil), samples...))
	require.NoError(t, err)
	_, err = NewTrainer(cfg, zerolog.Nop()).Fit(context.Background(), b, append([]Sample(nil), samples...))
	require.NoError(t, err)

	for u := 0; u < 5; u++ {
		for i := 0; i < 5; i++ {
			pa, _ := a.Predict(u, i)
			pb, _ := b.Predict(u, i)
			assert.Equal(t, pa, pb)
		}
	}
}

func TestTrainer_InvalidInput(t *testing.T) {
	tr := NewTrainer(DefaultTrainerConfig(), zerolog.Nop())
	m := NewNCFModel(2, 2, 4, []int{4, 1}, 1)

	_, err := tr.Fit(context.Background(), m, nil)
	assert.True(t, core.IsInvalidInput(err))

	_, err = tr.Fit(context.Background(), m, []Sample{{User: 5, Item: 0, Rating: 1}})
	assert.True(t, core.IsInvalidInput(err))

	// 单条样本划分后训练集为空
	_, err = tr.Fit(context.Background(), m, []Sample{{User: 0, Item: 0, Rating: 1}})
	assert.True(t, core.IsInvalidInput(err))
}

func TestTrainer_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewNCFModel(3, 3, 4, []int{4, 1}, 1)
	_, err := NewTrainer(DefaultTrainerConfig(), zerolog.Nop()).Fit(ctx, m, syntheticSamples(3, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitSamples(t *testing.T) {
	samples := syntheticSamples(2, 5)
	train, val := splitSamples(samples, 0.2, rand.New(rand.NewSource(42)))
	assert.Len(t, train, 8)
	assert.Len(t, val, 2)

	train, val = splitSamples(samples, 0, rand.New(rand.NewSource(42)))
	assert.Len(t, train, 10)
	assert.Empty(t, val)
}

func TestTrainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TrainerConfig)
	}{
		{"zero value", func(c *TrainerConfig) { *c = TrainerConfig{} }},
		{"zero batch size", func(c *TrainerConfig) { c.BatchSize = 0 }},
		{"zero epochs", func(c *TrainerConfig) { c.Epochs = 0 }},
		{"zero patience", func(c *TrainerConfig) { c.Patience = 0 }},
		{"dropout out of range", func(c *TrainerConfig) { c.Dropout = []float64{1.5} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTrainerConfig()
			tt.mutate(&cfg)
			m := NewNCFModel(3, 3, 4, []int{4, 1}, 1)
			before, _ := m.Predict(1, 2)

			_, err := NewTrainer(cfg, zerolog.Nop()).Fit(context.Background(), m, syntheticSamples(3, 3))
			assert.True(t, core.IsInvalidInput(err), "got %v", err)
			after, _ := m.Predict(1, 2)
			assert.Equal(t, before, after)
		})
	}
}
