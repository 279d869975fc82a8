package recommend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/ncfrec/artifact"
	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/feature"
	"github.com/rushteam/ncfrec/model"
)

// TrainOptions 是从交互数据训练新产物的参数。
type TrainOptions struct {
	EmbeddingDim int
	Layers       []int
	Seed         int64
	// Trainer 为零值时使用 model.DefaultTrainerConfig()；部分填写的配置不做补全，由 Fit 校验
	Trainer model.TrainerConfig
	Logger  zerolog.Logger
}

// Train 拟合编码器、初始化 NCF 模型并训练，返回可直接保存的产物。
//
//nolint:gocritic // hugeParam
func Train(ctx context.Context, interactions []feature.Interaction, opts TrainOptions) (*artifact.Bundle, *model.History, error) {
	if len(interactions) == 0 {
		return nil, nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, "train: no interactions")
	}
	if opts.EmbeddingDim <= 0 {
		opts.EmbeddingDim = model.DefaultEmbeddingDim
	}
	if len(opts.Layers) == 0 {
		opts.Layers = model.DefaultTowerLayers
	}
	if isZeroTrainerConfig(&opts.Trainer) {
		opts.Trainer = model.DefaultTrainerConfig()
	}
	if err := opts.Trainer.Validate(); err != nil {
		return nil, nil, err
	}

	codec := feature.FitInteractions(interactions)
	samples := make([]model.Sample, 0, len(interactions))
	for _, in := range interactions {
		u, err := codec.EncodeUser(in.UserID)
		if err != nil {
			return nil, nil, err
		}
		i, err := codec.EncodeItem(in.ItemID)
		if err != nil {
			return nil, nil, err
		}
		samples = append(samples, model.Sample{User: u, Item: i, Rating: in.Rating})
	}

	m := model.NewNCFModel(codec.NumUsers(), codec.NumItems(), opts.EmbeddingDim, opts.Layers, opts.Seed)
	opts.Logger.Info().
		Int("users", codec.NumUsers()).
		Int("items", codec.NumItems()).
		Int("samples", len(samples)).
		Msg("training ncf model")

	history, err := model.NewTrainer(opts.Trainer, opts.Logger).Fit(ctx, m, samples)
	if err != nil {
		return nil, nil, fmt.Errorf("train: %w", err)
	}
	return &artifact.Bundle{Codec: codec, Model: m}, history, nil
}

func isZeroTrainerConfig(c *model.TrainerConfig) bool {
	return c.Epochs == 0 && c.BatchSize == 0 && c.LearningRate == 0 && c.Beta1 == 0 && c.Beta2 == 0 &&
		c.Epsilon == 0 && len(c.Dropout) == 0 && c.ValidationSplit == 0 && c.Seed == 0 &&
		c.Patience == 0 && c.LRPatience == 0 && c.LRFactor == 0 && c.MinLR == 0 && c.MinDelta == 0
}
