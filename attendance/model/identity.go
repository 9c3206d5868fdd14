package model

import "time"

// Identity is a person eligible for facility access. RemoteCode is the
// employee code on the device API; once assigned it never changes.
type Identity struct {
	ID         uint    `gorm:"primaryKey;column:id" json:"id"`
	NationalID string  `gorm:"column:national_id;type:varchar(64);not null;uniqueIndex" json:"nationalId"`
	FirstName  string  `gorm:"column:first_name;type:varchar(100)" json:"firstName"`
	LastName   string  `gorm:"column:last_name;type:varchar(100)" json:"lastName"`
	RemoteCode *string `gorm:"column:remote_code;type:varchar(64);uniqueIndex" json:"remoteCode"`
	RemoteID   *int64  `gorm:"column:remote_id" json:"remoteId"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Identity) TableName() string {
	return "identities"
}

func (i *Identity) HasRemoteCode() bool {
	return i.RemoteCode != nil && *i.RemoteCode != ""
}
