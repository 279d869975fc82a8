package feature

import "github.com/rushteam/ncfrec/core"

// Interaction 是一条训练交互记录（用户对物品的评分）。
type Interaction struct {
	UserID string
	ItemID string
	Rating float64
}

// IdentityCodec 同时持有用户和物品两套词表，二者编码空间相互独立。
type IdentityCodec struct {
	Users *LabelEncoder `json:"users"`
	Items *LabelEncoder `json:"items"`
}

// NewIdentityCodec 由已拟合的两个编码器组成 codec
func NewIdentityCodec(users, items *LabelEncoder) *IdentityCodec {
	return &IdentityCodec{Users: users, Items: items}
}

// FitInteractions 基于交互记录拟合用户与物品词表。
func FitInteractions(interactions []Interaction) *IdentityCodec {
	users := make([]string, 0, len(interactions))
	items := make([]string, 0, len(interactions))
	for _, in := range interactions {
		users = append(users, in.UserID)
		items = append(items, in.ItemID)
	}
	return &IdentityCodec{
		Users: NewLabelEncoder().Fit(users),
		Items: NewLabelEncoder().Fit(items),
	}
}

func (c *IdentityCodec) EncodeUser(id string) (int, error) {
	idx, err := c.Users.Transform(id)
	if err != nil {
		return 0, core.WrapDomainError(core.ModuleCodec, core.ErrorCodeUnknownIdentifier, err, "codec: unknown user")
	}
	return idx, nil
}

func (c *IdentityCodec) EncodeItem(id string) (int, error) {
	idx, err := c.Items.Transform(id)
	if err != nil {
		return 0, core.WrapDomainError(core.ModuleCodec, core.ErrorCodeUnknownIdentifier, err, "codec: unknown item")
	}
	return idx, nil
}

func (c *IdentityCodec) LookupUser(id string) (int, bool) { return c.Users.Lookup(id) }
func (c *IdentityCodec) LookupItem(id string) (int, bool) { return c.Items.Lookup(id) }

func (c *IdentityCodec) NumUsers() int { return c.Users.Len() }
func (c *IdentityCodec) NumItems() int { return c.Items.Len() }
