package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobLease is one row per lock name. A lease is free once Until has passed.
type JobLease struct {
	Name      string    `gorm:"column:job_lease_name;type:varchar(100);primaryKey" json:"name"`
	Holder    string    `gorm:"column:job_lease_holder;type:varchar(64);not null" json:"holder"`
	Until     time.Time `gorm:"column:job_lease_until;type:timestamptz;not null" json:"until"`
	UpdatedAt time.Time `gorm:"column:job_lease_updated_at;type:timestamptz;not null" json:"updated_at"`
}

func (JobLease) TableName() string { return "job_leases" }

// LeaseLocker keeps leases in the job_leases table.
type LeaseLocker struct {
	db     *gorm.DB
	holder string
	now    func() time.Time
}

func NewLeaseLocker(db *gorm.DB) *LeaseLocker {
	return &LeaseLocker{db: db, holder: uuid.NewString(), now: time.Now}
}

func (l *LeaseLocker) Holder() string { return l.holder }

const acquireLeaseSQL = `INSERT INTO job_leases (job_lease_name, job_lease_holder, job_lease_until, job_lease_updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (job_lease_name) DO UPDATE
SET job_lease_holder = EXCLUDED.job_lease_holder,
    job_lease_until = EXCLUDED.job_lease_until,
    job_lease_updated_at = EXCLUDED.job_lease_updated_at
WHERE job_leases.job_lease_until < ?`

// TryAcquire inserts the lease or takes over an expired one. A live lease held
// by anyone, this holder included, makes the upsert touch zero rows.
func (l *LeaseLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := l.now().UTC()
	res := l.db.WithContext(ctx).Exec(acquireLeaseSQL, name, l.holder, now.Add(ttl), now, now)
	if res.Error != nil {
		return false, fmt.Errorf("acquire lease %q: %w", name, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (l *LeaseLocker) Release(ctx context.Context, name string) error {
	res := l.db.WithContext(ctx).
		Where("job_lease_name = ? AND job_lease_holder = ?", name, l.holder).
		Delete(&JobLease{})
	if res.Error != nil {
		return fmt.Errorf("release lease %q: %w", name, res.Error)
	}
	return nil
}
