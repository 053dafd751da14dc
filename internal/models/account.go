package models

import "gorm.io/gorm"

// Account is a stored BitMEX credential set. The dashboard can hold several
// named accounts and switch between them; this is the only thing persisted.
type Account struct {
	gorm.Model
	Name      string `gorm:"uniqueIndex;not null" json:"name"`
	ApiKey    string `gorm:"not null" json:"apiKey"`
	ApiSecret string `gorm:"not null" json:"-"`
	Testnet   bool   `gorm:"default:false" json:"testnet"`
}
