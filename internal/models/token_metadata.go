package models

// TokenMetadata is the persisted Metaplex metadata for a mint, including a
// 64x64 PNG thumbnail fetched from the metadata URI.
type TokenMetadata struct {
	MintAddress string  `gorm:"type:text;primaryKey" json:"mint_address"`
	Name        *string `gorm:"type:text" json:"name,omitempty"`
	Symbol      *string `gorm:"type:text" json:"symbol,omitempty"`
	URI         *string `gorm:"type:text" json:"uri,omitempty"`
	Image       []byte  `gorm:"type:bytea" json:"-"`
}

func (TokenMetadata) TableName() string {
	return "token_metadata"
}
