package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/feature"
	"github.com/rushteam/ncfrec/model"
)

// FormatVersion 是当前产物格式版本，2 起元数据带 codec_checksum
const FormatVersion = 2

// 三个组成部分的名称（文件名 / key 后缀）
const (
	PartCodec    = "codec.json"
	PartModel    = "model.gob.gz"
	PartMetadata = "metadata.json"
)

var parts = []string{PartCodec, PartModel, PartMetadata}

// Metadata 描述一个产物。
type Metadata struct {
	FormatVersion int       `json:"format_version"`
	UserVocabSize int       `json:"n_users"`
	ItemVocabSize int       `json:"n_products"`
	EmbeddingDim  int       `json:"embedding_dim"`
	Layers        []int     `json:"layers"`
	SavedAt       time.Time `json:"saved_date"`

	// ModelChecksum 是未压缩 gob 数据的 SHA-256
	ModelChecksum string `json:"model_checksum"`
	// CodecChecksum 是 codec.json 原始字节的 SHA-256，防止与其他版本的模型拼接
	CodecChecksum string `json:"codec_checksum"`
	SizeBytes     int64  `json:"size_bytes"`
}

// Bundle 是一次加载/保存的完整单元。
type Bundle struct {
	Codec    *feature.IdentityCodec
	Model    *model.NCFModel
	Metadata Metadata
}

// Repository 是产物仓库。
type Repository interface {
	Save(ctx context.Context, b *Bundle) error
	Load(ctx context.Context) (*Bundle, error)
}

// modelState 是模型参数的 gob 编码形态
type modelState struct {
	EmbeddingDim  int
	UserEmbedding [][]float64
	ItemEmbedding [][]float64
	InputDim      int
	Layers        []int
	Weights       [][][]float64
	Biases        [][]float64
}

// encode 把 Bundle 编码为三部分，并回填 b.Metadata。
func encode(b *Bundle) (map[string][]byte, error) {
	if b == nil || b.Codec == nil || b.Model == nil || b.Codec.Users == nil || b.Codec.Items == nil {
		return nil, core.NewDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, "artifact: incomplete bundle")
	}
	if err := checkConsistent(b.Codec, b.Model); err != nil {
		return nil, core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeInvalidInput, err, "artifact: refusing to save")
	}

	codecData, err := json.Marshal(b.Codec)
	if err != nil {
		return nil, fmt.Errorf("encode codec: %w", err)
	}

	var raw bytes.Buffer
	state := modelState{
		EmbeddingDim:  b.Model.EmbeddingDim,
		UserEmbedding: b.Model.UserEmbedding,
		ItemEmbedding: b.Model.ItemEmbedding,
		InputDim:      b.Model.Tower.InputDim,
		Layers:        b.Model.Tower.Layers,
		Weights:       b.Model.Tower.Weights,
		Biases:        b.Model.Tower.Biases,
	}
	if err := gob.NewEncoder(&raw).Encode(state); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	hash := sha256.Sum256(raw.Bytes())
	codecHash := sha256.Sum256(codecData)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	b.Metadata = Metadata{
		FormatVersion: FormatVersion,
		UserVocabSize: b.Codec.NumUsers(),
		ItemVocabSize: b.Codec.NumItems(),
		EmbeddingDim:  b.Model.EmbeddingDim,
		Layers:        append([]int(nil), b.Model.Tower.Layers...),
		SavedAt:       time.Now().UTC(),
		ModelChecksum: hex.EncodeToString(hash[:]),
		CodecChecksum: hex.EncodeToString(codecHash[:]),
		SizeBytes:     int64(compressed.Len()),
	}
	metaData, err := json.MarshalIndent(b.Metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	return map[string][]byte{
		PartCodec:    codecData,
		PartModel:    compressed.Bytes(),
		PartMetadata: metaData,
	}, nil
}

// decode 校验并还原三部分，失败统一返回 CORRUPT_ARTIFACT。
func decode(data map[string][]byte) (*Bundle, error) {
	for _, p := range parts {
		if _, ok := data[p]; !ok {
			return nil, corrupt(nil, "missing part %s", p)
		}
	}

	var meta Metadata
	if err := json.Unmarshal(data[PartMetadata], &meta); err != nil {
		return nil, corrupt(err, "decode %s", PartMetadata)
	}
	if meta.FormatVersion != FormatVersion {
		return nil, corrupt(nil, "format version %d, want %d", meta.FormatVersion, FormatVersion)
	}

	codecHash := sha256.Sum256(data[PartCodec])
	if sum := hex.EncodeToString(codecHash[:]); sum != meta.CodecChecksum {
		return nil, corrupt(nil, "%s checksum mismatch: expected %s, got %s", PartCodec, meta.CodecChecksum, sum)
	}

	var codec feature.IdentityCodec
	if err := json.Unmarshal(data[PartCodec], &codec); err != nil {
		return nil, corrupt(err, "decode %s", PartCodec)
	}
	if codec.Users == nil || codec.Items == nil {
		return nil, corrupt(nil, "%s lacks user or item vocabulary", PartCodec)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(data[PartModel]))
	if err != nil {
		return nil, corrupt(err, "decompress %s", PartModel)
	}
	defer func() { _ = gzr.Close() }()
	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, corrupt(err, "read %s", PartModel)
	}
	hash := sha256.Sum256(raw)
	if sum := hex.EncodeToString(hash[:]); sum != meta.ModelChecksum {
		return nil, corrupt(nil, "%s checksum mismatch: expected %s, got %s", PartModel, meta.ModelChecksum, sum)
	}

	var state modelState
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&state); err != nil {
		return nil, corrupt(err, "decode %s", PartModel)
	}
	m := &model.NCFModel{
		EmbeddingDim:  state.EmbeddingDim,
		UserEmbedding: state.UserEmbedding,
		ItemEmbedding: state.ItemEmbedding,
		Tower: &model.DNNModel{
			InputDim: state.InputDim,
			Layers:   state.Layers,
			Weights:  state.Weights,
			Biases:   state.Biases,
		},
	}
	if err := checkConsistent(&codec, m); err != nil {
		return nil, corrupt(err, "inconsistent artifact")
	}

	switch {
	case meta.UserVocabSize != codec.NumUsers():
		return nil, corrupt(nil, "metadata n_users %d, codec has %d", meta.UserVocabSize, codec.NumUsers())
	case meta.ItemVocabSize != codec.NumItems():
		return nil, corrupt(nil, "metadata n_products %d, codec has %d", meta.ItemVocabSize, codec.NumItems())
	case meta.EmbeddingDim != m.EmbeddingDim:
		return nil, corrupt(nil, "metadata embedding_dim %d, model has %d", meta.EmbeddingDim, m.EmbeddingDim)
	case !slices.Equal(meta.Layers, m.Tower.Layers):
		return nil, corrupt(nil, "metadata layers %v, model has %v", meta.Layers, m.Tower.Layers)
	}

	return &Bundle{Codec: &codec, Model: m, Metadata: meta}, nil
}

// checkConsistent 校验词表大小与 Embedding 表行数一致、模型形状自洽。
func checkConsistent(codec *feature.IdentityCodec, m *model.NCFModel) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if codec.NumUsers() != m.NumUsers() {
		return fmt.Errorf("codec has %d users, model has %d", codec.NumUsers(), m.NumUsers())
	}
	if codec.NumItems() != m.NumItems() {
		return fmt.Errorf("codec has %d items, model has %d", codec.NumItems(), m.NumItems())
	}
	return nil
}

func corrupt(err error, format string, args ...any) error {
	if err == nil {
		err = core.ErrCorruptArtifact
	}
	return core.WrapDomainError(core.ModuleArtifact, core.ErrorCodeCorruptArtifact, err, "artifact: "+format, args...)
}
