package feature

import (
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/core"
)

func TestLabelEncoder_Fit(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		classes []string
	}{
		{"numeric order", []string{"10", "2", "1", "2"}, []string{"1", "2", "10"}},
		{"lexicographic", []string{"b", "a", "c"}, []string{"a", "b", "c"}},
		{"mixed", []string{"x", "3", "20"}, []string{"3", "20", "x"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewLabelEncoder().Fit(tt.ids)
			assert.Equal(t, tt.classes, enc.Classes())
			assert.Equal(t, len(tt.classes), enc.Len())
			for i, c := range tt.classes {
				idx, err := enc.Transform(c)
				require.NoError(t, err)
				assert.Equal(t, i, idx)
				back, err := enc.InverseTransform(idx)
				require.NoError(t, err)
				assert.Equal(t, c, back)
			}
		})
	}
}

func TestLabelEncoder_Unknown(t *testing.T) {
	enc := NewLabelEncoder().Fit([]string{"1", "2"})

	_, err := enc.Transform("3")
	require.Error(t, err)
	assert.True(t, core.IsUnknownIdentifier(err))
	assert.ErrorIs(t, err, core.ErrUnknownIdentifier)

	_, ok := enc.Lookup("3")
	assert.False(t, ok)

	_, err = enc.InverseTransform(2)
	assert.True(t, core.IsInvalidInput(err))
	_, err = enc.InverseTransform(-1)
	assert.True(t, core.IsInvalidInput(err))
}

func TestLabelEncoder_Deterministic(t *testing.T) {
	a := NewLabelEncoder().Fit([]string{"5", "3", "9", "3"})
	b := NewLabelEncoder().Fit([]string{"9", "3", "5"})
	assert.Equal(t, a.Classes(), b.Classes())
}

func TestLabelEncoder_JSON(t *testing.T) {
	enc := NewLabelEncoder().Fit([]string{"b", "a"})
	data, err := json.Marshal(enc)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(data))

	var got LabelEncoder
	require.NoError(t, json.Unmarshal(data, &got))
	idx, ok := got.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	var dup LabelEncoder
	assert.Error(t, json.Unmarshal([]byte(`["a","a"]`), &dup))
}

func TestIdentityCodec(t *testing.T) {
	codec := FitInteractions([]Interaction{
		{UserID: "2", ItemID: "101", Rating: 4},
		{UserID: "1", ItemID: "100", Rating: 5},
		{UserID: "2", ItemID: "100", Rating: 3},
	})
	assert.Equal(t, 2, codec.NumUsers())
	assert.Equal(t, 2, codec.NumItems())

	u, err := codec.EncodeUser("2")
	require.NoError(t, err)
	assert.Equal(t, 1, u)

	_, err = codec.EncodeItem("999")
	assert.True(t, core.IsUnknownIdentifier(err))

	// 用户与物品编码空间独立
	_, ok := codec.LookupUser("100")
	assert.False(t, ok)
}

func TestIdentityCodec_ConcurrentReads(t *testing.T) {
	codec := FitInteractions([]Interaction{{UserID: "1", ItemID: "a"}, {UserID: "2", ItemID: "b"}})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, ok := codec.LookupItem("b")
			assert.True(t, ok)
			assert.Equal(t, 1, idx)
		}()
	}
	wg.Wait()
}
