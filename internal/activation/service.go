// Package activation issues single-use activation keys and answers whether
// a business may use a feature.
package activation

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TopicKeyGenerated     = "key.generated"
	TopicFeatureActivated = "feature.activated"

	DefaultExpiresInDays = 365
	keyBytes             = 32
)

var (
	ErrKeyInvalid       = errors.New("Invalid or used activation key")
	ErrKeyExpired       = errors.New("Activation key has expired")
	ErrNoFeatures       = errors.New("at least one feature is required")
	ErrFeatureNotFound  = errors.New("feature not found")
	ErrBusinessNotFound = errors.New("business not found")
	ErrFeatureExists    = errors.New("feature already exists")

	ErrFeatureNameRequired = errors.New("feature name is required")
)

// Publisher receives domain events after commit
type Publisher interface {
	Publish(topic string, args ...interface{})
}

// KeyEvent is published for key.generated and feature.activated
type KeyEvent struct {
	BusinessID int64
	KeyID      int64
	Features   []string
}

type GenerateKeyRequest struct {
	BusinessID    int64   `json:"business_id,string" form:"business_id" validate:"required"`
	FeatureIDs    []int64 `json:"feature_ids" form:"feature_ids" validate:"required,min=1"`
	ExpiresInDays int     `json:"expires_in_days" form:"expires_in_days" validate:"gte=0"`
	BundleName    string  `json:"bundle_name" form:"bundle_name" validate:"max=100"`
}

// FeatureStatus is one row of the owner feature page
type FeatureStatus struct {
	Feature     domain.Feature
	Activated   bool
	Usable      bool
	ActivatedAt *time.Time
}

type Service struct {
	db  *gorm.DB
	bus Publisher
	now func() time.Time
}

func NewService(db *gorm.DB, bus Publisher) *Service {
	return &Service{db: db, bus: bus, now: time.Now}
}

func (s *Service) publish(topic string, ev KeyEvent) {
	if s.bus != nil {
		s.bus.Publish(topic, ev)
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func featureNames(features []domain.Feature) []string {
	names := make([]string, 0, len(features))
	for _, f := range features {
		names = append(names, f.Name)
	}
	return names
}

// GenerateKey creates a key for the business and returns the raw key. The raw
// key is not stored and cannot be recovered later.
func (s *Service) GenerateKey(ctx context.Context, req GenerateKeyRequest) (string, *domain.ActivationKey, error) {
	ids := uniqueIDs(req.FeatureIDs)
	if len(ids) == 0 {
		return "", nil, ErrNoFeatures
	}
	db := s.db.WithContext(ctx)

	var bizCount int64
	if err := db.Model(&domain.Business{}).Where("id = ?", req.BusinessID).Count(&bizCount).Error; err != nil {
		return "", nil, err
	}
	if bizCount == 0 {
		return "", nil, ErrBusinessNotFound
	}

	var features []domain.Feature
	if err := db.Where("id IN ?", ids).Order("name").Find(&features).Error; err != nil {
		return "", nil, err
	}
	if len(features) != len(ids) {
		return "", nil, ErrFeatureNotFound
	}

	raw, err := common.RandomToken(keyBytes)
	if err != nil {
		return "", nil, err
	}
	days := req.ExpiresInDays
	if days <= 0 {
		days = DefaultExpiresInDays
	}
	now := s.now()
	expires := now.AddDate(0, 0, days)
	key := &domain.ActivationKey{
		ID:         common.UUIDint64(),
		KeyHash:    common.Sha256Hex(raw),
		BusinessID: req.BusinessID,
		BundleName: strings.TrimSpace(req.BundleName),
		ExpiresAt:  &expires,
		CreatedAt:  now,
	}
	if len(features) == 1 {
		key.FeatureID = &features[0].ID
		key.Feature = &features[0]
	} else {
		key.Features = features
		if key.BundleName == "" {
			key.BundleName = strings.Join(featureNames(features), "+")
		}
	}
	if err := db.Omit("Feature").Create(key).Error; err != nil {
		return "", nil, pkgerrors.Wrap(err, "create activation key")
	}

	zap.L().Info("activation key generated",
		zap.String("namespace", "activation"),
		zap.Int64("business_id", key.BusinessID),
		zap.Int64("key_id", key.ID),
		zap.Strings("features", featureNames(features)))
	s.publish(TopicKeyGenerated, KeyEvent{BusinessID: key.BusinessID, KeyID: key.ID, Features: featureNames(features)})
	return raw, key, nil
}

// Redeem consumes a raw key for the business and activates its features.
// A key is accepted at most once, for the business it was issued to.
func (s *Service) Redeem(ctx context.Context, businessID int64, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || businessID == 0 {
		return nil, ErrKeyInvalid
	}
	hash := common.Sha256Hex(raw)
	now := s.now()

	var names []string
	var keyID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key domain.ActivationKey
		err := tx.Preload("Feature").Preload("Features").
			Where("key_hash = ? AND business_id = ? AND used = ?", hash, businessID, false).
			First(&key).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrKeyInvalid
		}
		if err != nil {
			return err
		}
		if key.Expired(now) {
			return ErrKeyExpired
		}

		features := key.Features
		if len(features) == 0 && key.Feature != nil {
			features = []domain.Feature{*key.Feature}
		}
		if len(features) == 0 {
			return pkgerrors.Wrap(ErrKeyInvalid, "key grants no features")
		}

		res := tx.Model(&domain.ActivationKey{}).
			Where("id = ? AND used = ?", key.ID, false).
			Updates(map[string]interface{}{"used": true, "used_at": now})
		if res.Error != nil {
			return res.Error
		}
		// lost the race against a concurrent redemption
		if res.RowsAffected != 1 {
			return ErrKeyInvalid
		}

		for _, f := range features {
			if err := activate(tx, businessID, f.ID, key.ID, now); err != nil {
				return err
			}
		}
		keyID = key.ID
		names = featureNames(features)
		return nil
	})
	if err != nil {
		zap.L().Info("activation key rejected",
			zap.String("namespace", "activation"),
			zap.Int64("business_id", businessID),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("features activated",
		zap.String("namespace", "activation"),
		zap.Int64("business_id", businessID),
		zap.Strings("features", names))
	s.publish(TopicFeatureActivated, KeyEvent{BusinessID: businessID, KeyID: keyID, Features: names})
	return names, nil
}

func activate(tx *gorm.DB, businessID, featureID, keyID int64, now time.Time) error {
	var bf domain.BusinessFeature
	err := tx.Where("business_id = ? AND feature_id = ?", businessID, featureID).First(&bf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bf = domain.BusinessFeature{
			ID:              common.UUIDint64(),
			BusinessID:      businessID,
			FeatureID:       featureID,
			Active:          true,
			ActivatedAt:     &now,
			ActivationKeyID: &keyID,
		}
		return pkgerrors.Wrap(tx.Create(&bf).Error, "create business feature")
	}
	if err != nil {
		return err
	}
	return pkgerrors.Wrap(tx.Model(&domain.BusinessFeature{}).Where("id = ?", bf.ID).Updates(map[string]interface{}{
		"active":            true,
		"activated_at":      now,
		"activation_key_id": keyID,
	}).Error, "update business feature")
}

// FeatureEnabled reports whether the business may use the named feature.
// Unknown and globally disabled features are unusable.
func (s *Service) FeatureEnabled(ctx context.Context, businessID int64, name string) (bool, error) {
	var feature domain.Feature
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&feature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !feature.Enabled {
		return false, nil
	}
	if !feature.RequiresActivation {
		return true, nil
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&domain.BusinessFeature{}).
		Where("business_id = ? AND feature_id = ? AND active = ?", businessID, feature.ID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// BusinessFeatures lists every feature with its state for the business
func (s *Service) BusinessFeatures(ctx context.Context, businessID int64) ([]FeatureStatus, error) {
	db := s.db.WithContext(ctx)
	var features []domain.Feature
	if err := db.Order("name").Find(&features).Error; err != nil {
		return nil, err
	}
	var activated []domain.BusinessFeature
	if err := db.Where("business_id = ? AND active = ?", businessID, true).Find(&activated).Error; err != nil {
		return nil, err
	}
	byFeature := make(map[int64]domain.BusinessFeature, len(activated))
	for _, bf := range activated {
		byFeature[bf.FeatureID] = bf
	}

	result := make([]FeatureStatus, 0, len(features))
	for _, f := range features {
		bf, ok := byFeature[f.ID]
		st := FeatureStatus{Feature: f, Activated: ok}
		if ok {
			st.ActivatedAt = bf.ActivatedAt
		}
		st.Usable = f.Enabled && (!f.RequiresActivation || ok)
		result = append(result, st)
	}
	return result, nil
}

func (s *Service) ListFeatures(ctx context.Context) ([]domain.Feature, error) {
	var features []domain.Feature
	err := s.db.WithContext(ctx).Order("name").Find(&features).Error
	return features, err
}

// CreateFeature registers a new platform feature, enabled
func (s *Service) CreateFeature(ctx context.Context, name, description string, requiresActivation bool) (*domain.Feature, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrFeatureNameRequired
	}
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&domain.Feature{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrFeatureExists
	}
	f := &domain.Feature{
		ID:                 common.UUIDint64(),
		Name:               name,
		Description:        strings.TrimSpace(description),
		Enabled:            true,
		RequiresActivation: requiresActivation,
	}
	if err := db.Create(f).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "create feature")
	}
	return f, nil
}

// ToggleFeature flips the global kill-switch of a feature
func (s *Service) ToggleFeature(ctx context.Context, featureID int64) (*domain.Feature, error) {
	var feature domain.Feature
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&feature, featureID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFeatureNotFound
			}
			return err
		}
		feature.Enabled = !feature.Enabled
		return tx.Model(&domain.Feature{}).Where("id = ?", feature.ID).Update("enabled", feature.Enabled).Error
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("feature toggled",
		zap.String("namespace", "activation"),
		zap.String("feature", feature.Name),
		zap.Bool("enabled", feature.Enabled))
	return &feature, nil
}

// ListKeys newest first; businessID 0 lists keys of all businesses
func (s *Service) ListKeys(ctx context.Context, businessID int64, limit int) ([]domain.ActivationKey, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Preload("Feature").Preload("Features").Order("created_at DESC").Limit(limit)
	if businessID != 0 {
		q = q.Where("business_id = ?", businessID)
	}
	var keys []domain.ActivationKey
	err := q.Find(&keys).Error
	return keys, err
}
