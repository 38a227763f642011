package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const revokedCertificatesKey = "reelsync:revoked_certificates"

// RevocationList is the local deny-list of revoked certificate thumbprints.
// It is shared by every instance through Redis.
type RevocationList struct {
	rdb *redis.Client
}

func NewRevocationList(rdb *redis.Client) *RevocationList {
	return &RevocationList{rdb: rdb}
}

// Add denies a thumbprint
func (l *RevocationList) Add(ctx context.Context, thumbprint string) error {
	return l.rdb.SAdd(ctx, revokedCertificatesKey, thumbprint).Err()
}

// Contains reports whether a thumbprint is denied
func (l *RevocationList) Contains(ctx context.Context, thumbprint string) (bool, error) {
	return l.rdb.SIsMember(ctx, revokedCertificatesKey, thumbprint).Result()
}
