package models

import "time"

// KVEntry backs the MySQL implementation of store.KeyValueStore. The rewards
// core serializes its records as JSON blobs keyed per user.
type KVEntry struct {
	K         string    `gorm:"primaryKey;type:varchar(191)" json:"k"`
	V         []byte    `gorm:"type:mediumblob" json:"v"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
