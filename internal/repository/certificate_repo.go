package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"gorm.io/gorm"
)

// CertificateRepository handles database operations for DeviceCertificate
type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create stores a new certificate binding
func (r *CertificateRepository) Create(ctx context.Context, cert *model.DeviceCertificate) error {
	return translate(r.db.WithContext(ctx).Create(cert).Error)
}

// FindByThumbprint finds a binding by the certificate thumbprint
func (r *CertificateRepository) FindByThumbprint(ctx context.Context, thumbprint string) (*model.DeviceCertificate, error) {
	var cert model.DeviceCertificate
	err := r.db.WithContext(ctx).Where("thumbprint = ?", thumbprint).First(&cert).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cert, nil
}

// ListByUser returns the user's bindings, newest first
func (r *CertificateRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DeviceCertificate, error) {
	var certs []model.DeviceCertificate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("registered_at DESC").
		Find(&certs).Error
	return certs, translate(err)
}

// MarkRevoked sets revoked_at once. It reports whether this call did the revoking.
func (r *CertificateRepository) MarkRevoked(ctx context.Context, thumbprint string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.DeviceCertificate{}).
		Where("thumbprint = ? AND revoked_at IS NULL", thumbprint).
		Update("revoked_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
