package domain

import "time"

// OwnershipRecord maps an owner to an item they uploaded.
// The composite key (UserEmail, ItemURL) is both the primary key and the
// access boundary: every lookup is scoped by owner.
type OwnershipRecord struct {
	UserEmail  string    `gorm:"column:user_email;type:text;primaryKey" json:"userEmail"`
	ItemURL    string    `gorm:"column:item_url;type:text;primaryKey" json:"imageUrl"`
	UploadedAt time.Time `gorm:"column:uploaded_at;not null;index:idx_meme_ownership_uploaded" json:"uploadedAt"`
}

// TableName returns the database table name for OwnershipRecord.
func (OwnershipRecord) TableName() string {
	return "meme_ownership"
}
