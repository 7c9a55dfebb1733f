package domain

import "time"

// Feature is a platform capability. Enabled is the global kill-switch,
// RequiresActivation turns on the per-business gate.
type Feature struct {
	ID                 int64     `json:"id,string" form:"id"`
	Name               string    `gorm:"size:64;uniqueIndex;not null" json:"name" form:"name"`
	Description        string    `gorm:"size:255" json:"description" form:"description"`
	Enabled            bool      `gorm:"not null" json:"enabled" form:"enabled"`
	RequiresActivation bool      `gorm:"not null" json:"requires_activation" form:"requires_activation"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Feature) TableName() string {
	return "feature"
}

// ActivationKey is a single-use credential issued to one business. Only the
// SHA-256 of the raw key is stored. Single-feature keys set FeatureID, bundle
// keys list their features through the activation_key_feature join table.
type ActivationKey struct {
	ID         int64      `json:"id,string"`
	KeyHash    string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	BusinessID int64      `gorm:"index;not null" json:"business_id,string"`
	FeatureID  *int64     `gorm:"index" json:"feature_id,string,omitempty"`
	Feature    *Feature   `gorm:"foreignKey:FeatureID" json:"feature,omitempty"`
	BundleName string     `gorm:"size:100" json:"bundle_name"`
	Features   []Feature  `gorm:"many2many:activation_key_feature;" json:"features,omitempty"`
	Used       bool       `gorm:"not null;index" json:"used"`
	UsedAt     *time.Time `json:"used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName Specify table name
func (ActivationKey) TableName() string {
	return "activation_key"
}

// Expired reports whether the key expiry lies before now
func (k ActivationKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// BusinessFeature records that a feature was activated for a business.
type BusinessFeature struct {
	ID              int64      `json:"id,string"`
	BusinessID      int64      `gorm:"uniqueIndex:idx_business_feature,priority:1;not null" json:"business_id,string"`
	FeatureID       int64      `gorm:"uniqueIndex:idx_business_feature,priority:2;not null" json:"feature_id,string"`
	Feature         *Feature   `gorm:"foreignKey:FeatureID" json:"feature,omitempty"`
	Active          bool       `gorm:"not null" json:"active"`
	ActivatedAt     *time.Time `json:"activated_at"`
	ActivationKeyID *int64     `json:"activation_key_id,string,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (BusinessFeature) TableName() string {
	return "business_feature"
}
