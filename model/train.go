package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/rushteam/ncfrec/core"
)

// Sample 是一条已编码的训练样本。
type Sample struct {
	User   int
	Item   int
	Rating float64
}

// TrainerConfig 是训练超参数。
type TrainerConfig struct {
	Epochs       int     `koanf:"epochs" validate:"min=1"`
	BatchSize    int     `koanf:"batch_size" validate:"min=1"`
	LearningRate float64 `koanf:"learning_rate" validate:"gt=0"`
	Beta1        float64 `koanf:"beta1" validate:"gt=0,lt=1"`
	Beta2        float64 `koanf:"beta2" validate:"gt=0,lt=1"`
	Epsilon      float64 `koanf:"epsilon" validate:"gt=0"`

	// Dropout[i] 作用于第 i 个隐藏层的输出，缺省项视为 0
	Dropout []float64 `koanf:"dropout" validate:"dive,gte=0,lt=1"`

	// ValidationSplit 为 0 时以训练损失作为监控指标
	ValidationSplit float64 `koanf:"validation_split" validate:"gte=0,lt=1"`
	Seed            int64   `koanf:"seed"`

	// 早停
	Patience int `koanf:"patience" validate:"min=1"`

	// 学习率衰减
	LRPatience int     `koanf:"lr_patience" validate:"min=1"`
	LRFactor   float64 `koanf:"lr_factor" validate:"gt=0,lt=1"`
	MinLR      float64 `koanf:"min_lr" validate:"gte=0"`
	MinDelta   float64 `koanf:"min_delta" validate:"gte=0"`
}

// DefaultTrainerConfig 返回默认训练配置
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:          30,
		BatchSize:       64,
		LearningRate:    0.001,
		Beta1:           0.9,
		Beta2:           0.999,
		Epsilon:         1e-7,
		Dropout:         []float64{0.3, 0.2},
		ValidationSplit: 0.2,
		Seed:            42,
		Patience:        5,
		LRPatience:      3,
		LRFactor:        0.5,
		MinLR:           1e-5,
		MinDelta:        1e-4,
	}
}

var validate = validator.New()

// Validate 按 validate 标签检查超参数，零值配置同样视为无效。
func (c TrainerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, err, "train: invalid config")
	}
	return nil
}

// History 记录训练过程。
type History struct {
	TrainLoss    []float64 `json:"train_loss"`
	ValLoss      []float64 `json:"val_loss"`
	LearningRate []float64 `json:"learning_rate"`

	BestEpoch    int  `json:"best_epoch"`
	StoppedEarly bool `json:"stopped_early"`

	// 恢复最佳权重后在验证集上的指标
	ValMAE  float64 `json:"val_mae"`
	ValRMSE float64 `json:"val_rmse"`

	TrainSize int `json:"train_size"`
	ValSize   int `json:"val_size"`
}

// Trainer 以 MSE 为损失、Adam 为优化器训练 NCFModel。
type Trainer struct {
	Config TrainerConfig
	logger zerolog.Logger
}

func NewTrainer(cfg TrainerConfig, logger zerolog.Logger) *Trainer {
	return &Trainer{
		Config: cfg,
		logger: logger.With().Str("component", "trainer").Logger(),
	}
}

// Fit 原地训练 m，结束时 m 持有监控指标最优的那一轮权重。
func (t *Trainer) Fit(ctx context.Context, m *NCFModel, samples []Sample) (*History, error) {
	cfg := t.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, err, "train: invalid model")
	}
	if len(samples) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "train: no samples")
	}
	for i, s := range samples {
		if s.User < 0 || s.User >= m.NumUsers() || s.Item < 0 || s.Item >= m.NumItems() {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("train: sample %d (%d,%d) outside vocabulary", i, s.User, s.Item))
		}
	}

	//nolint:gosec // math/rand 用于数据划分和 dropout 即可
	rng := rand.New(rand.NewSource(cfg.Seed))
	train, val := splitSamples(samples, cfg.ValidationSplit, rng)
	if len(train) == 0 {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("train: %d samples leave nothing to train on after split %.2f", len(samples), cfg.ValidationSplit))
	}
	monitor := val
	if len(monitor) == 0 {
		monitor = train
	}

	hist := &History{TrainSize: len(train), ValSize: len(val), BestEpoch: -1}
	opt := newAdam(m, cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Epsilon)
	grads := newGradients(m)

	var (
		best      = math.Inf(1)
		bestModel = m.Clone()
		wait      int
		lrBest    = math.Inf(1)
		lrWait    int
	)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })

		var lossSum float64
		for start := 0; start < len(train); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			end := min(start+cfg.BatchSize, len(train))
			grads.reset()
			lossSum += t.backward(m, train[start:end], grads, rng)
			opt.apply(m, grads)
		}
		trainLoss := lossSum / float64(len(train))
		valLoss := meanSquaredError(m, monitor)

		hist.TrainLoss = append(hist.TrainLoss, trainLoss)
		hist.ValLoss = append(hist.ValLoss, valLoss)
		hist.LearningRate = append(hist.LearningRate, opt.lr)

		t.logger.Debug().
			Int("epoch", epoch+1).
			Float64("loss", trainLoss).
			Float64("val_loss", valLoss).
			Float64("lr", opt.lr).
			Msg("epoch finished")

		// 早停
		if valLoss < best {
			best = valLoss
			bestModel = m.Clone()
			hist.BestEpoch = epoch
			wait = 0
		} else {
			wait++
		}

		// 学习率衰减
		if valLoss < lrBest-cfg.MinDelta {
			lrBest = valLoss
			lrWait = 0
		} else {
			lrWait++
			if lrWait >= cfg.LRPatience && opt.lr > cfg.MinLR {
				opt.lr = math.Max(opt.lr*cfg.LRFactor, cfg.MinLR)
				lrWait = 0
				t.logger.Debug().Int("epoch", epoch+1).Float64("lr", opt.lr).Msg("reduced learning rate")
			}
		}

		if wait >= cfg.Patience {
			hist.StoppedEarly = true
			t.logger.Info().Int("epoch", epoch+1).Int("best_epoch", hist.BestEpoch+1).Msg("early stopping")
			break
		}
	}

	*m = *bestModel
	hist.ValMAE, hist.ValRMSE = evaluate(m, monitor)
	t.logger.Info().
		Int("train_size", hist.TrainSize).
		Int("val_size", hist.ValSize).
		Float64("val_mae", hist.ValMAE).
		Float64("val_rmse", hist.ValRMSE).
		Msg("training finished")
	return hist, nil
}

// backward 对一个 batch 做前向与反向传播，把梯度累加到 g，返回该 batch 的平方误差和。
func (t *Trainer) backward(m *NCFModel, batch []Sample, g *gradients, rng *rand.Rand) float64 {
	tower := m.Tower
	nLayers := len(tower.Layers)
	scale := 2.0 / float64(len(batch))

	var sse float64
	for _, s := range batch {
		// acts[l] 是第 l 层的输入，pre[l] 是第 l 层的线性输出，mask[l] 是 dropout 缩放系数
		acts := make([][]float64, nLayers)
		pre := make([][]float64, nLayers)
		mask := make([][]float64, nLayers)

		acts[0] = m.input(s.User, s.Item)
		var out float64
		for l := 0; l < nLayers; l++ {
			z := make([]float64, tower.Layers[l])
			for j, w := range tower.Weights[l] {
				z[j] = tower.Biases[l][j] + dot(w, acts[l])
			}
			pre[l] = z
			if l == nLayers-1 {
				out = z[0]
				break
			}
			rate := t.dropoutRate(l)
			a := make([]float64, len(z))
			mk := make([]float64, len(z))
			for j, v := range z {
				mk[j] = 1
				if rate > 0 {
					if rng.Float64() < rate {
						mk[j] = 0
					} else {
						mk[j] = 1 / (1 - rate)
					}
				}
				a[j] = relu(v) * mk[j]
			}
			mask[l] = mk
			acts[l+1] = a
		}

		diff := out - s.Rating
		sse += diff * diff

		delta := []float64{scale * diff}
		for l := nLayers - 1; l >= 0; l-- {
			in := acts[l]
			prev := make([]float64, len(in))
			for j, d := range delta {
				if d == 0 {
					continue
				}
				g.biases[l][j] += d
				row := tower.Weights[l][j]
				gRow := g.weights[l][j]
				for k, x := range in {
					gRow[k] += d * x
					prev[k] += row[k] * d
				}
			}
			if l > 0 {
				for k := range prev {
					if pre[l-1][k] <= 0 {
						prev[k] = 0
					} else {
						prev[k] *= mask[l-1][k]
					}
				}
			}
			delta = prev
		}

		dim := m.EmbeddingDim
		g.addEmbedding(g.users, s.User, delta[:dim])
		g.addEmbedding(g.items, s.Item, delta[dim:])
	}
	return sse
}

func (t *Trainer) dropoutRate(layer int) float64 {
	if layer < len(t.Config.Dropout) {
		return t.Config.Dropout[layer]
	}
	return 0
}

// splitSamples 按固定随机种子划分训练集/验证集，验证集大小向上取整。
func splitSamples(samples []Sample, ratio float64, rng *rand.Rand) (train, val []Sample) {
	n := len(samples)
	nVal := 0
	if ratio > 0 {
		nVal = int(math.Ceil(ratio * float64(n)))
	}
	perm := rng.Perm(n)
	val = make([]Sample, 0, nVal)
	train = make([]Sample, 0, n-nVal)
	for i, p := range perm {
		if i < nVal {
			val = append(val, samples[p])
		} else {
			train = append(train, samples[p])
		}
	}
	return train, val
}

func meanSquaredError(m *NCFModel, samples []Sample) float64 {
	_, rmse := evaluate(m, samples)
	return rmse * rmse
}

// evaluate 返回 MAE 与 RMSE（推理模式，无 dropout）
func evaluate(m *NCFModel, samples []Sample) (mae, rmse float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	var absSum, sqSum float64
	for _, s := range samples {
		pred, err := m.Predict(s.User, s.Item)
		if err != nil {
			continue
		}
		d := pred - s.Rating
		absSum += math.Abs(d)
		sqSum += d * d
	}
	n := float64(len(samples))
	return absSum / n, math.Sqrt(sqSum / n)
}
