// Package profiles stores user identity, the denormalized points balance and
// the purchase-gating flags. The balance column is only ever written through
// the ledger package.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/ledger"
)

// ErrNotFound reports a lookup for a profile that does not exist.
var ErrNotFound = errors.New("profile not found")

// Profile is the user record backing auth claims, the points balance and the
// Stripe customer linkage.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty"`
	Points           int       `json:"points"`
	AgeVerified      bool      `json:"age_verified"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// GetByID fetches one profile.
func (p *Conf) GetByID(ctx context.Context, userID string) (Profile, error) {
	const queryGet = `
		SELECT id, email, role, stripe_customer_id, points, age_verified, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var profile Profile
	err := p.db.QueryRowContext(ctx, queryGet, userID).Scan(&profile.ID, &profile.Email,
		&profile.Role, &profile.StripeCustomerID, &profile.Points, &profile.AgeVerified,
		&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("querying profile %s: %w", userID, err)
	}
	return profile, nil
}

// Bootstrap inserts a profile with a zero balance and, when the row is new,
// credits the welcome grant through the ledger in the same transaction, so a
// crash can never leave a profile without its grant. Replayed account-created
// events are absorbed by the conflict clause and report created=false with no
// extra credit.
func (p *Conf) Bootstrap(ctx context.Context, userID, email string, welcomePoints int) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("user id is required")
	}

	const queryInsert = `
		INSERT INTO profiles (id, email, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`
	var created bool
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, queryInsert, userID, email)
		if err != nil {
			return fmt.Errorf("inserting profile %s: %w", userID, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("inserting profile %s: %w", userID, err)
		}
		created = rows > 0
		if created && welcomePoints > 0 {
			if _, err := ledger.CreditTx(ctx, tx, userID, welcomePoints, "welcome bonus", nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// SetAgeVerified flips the age-verification gate for discrete checkout.
func (p *Conf) SetAgeVerified(ctx context.Context, userID string, verified bool) error {
	const queryUpdate = `UPDATE profiles SET age_verified = $2, updated_at = NOW() WHERE id = $1`
	res, err := p.db.ExecContext(ctx, queryUpdate, userID, verified)
	if err != nil {
		return fmt.Errorf("updating age verification for %s: %w", userID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating age verification for %s: %w", userID, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

// SetStripeCustomerID records the Stripe customer created for this user.
func (p *Conf) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const queryUpdate = `UPDATE profiles SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`
	res, err := p.db.ExecContext(ctx, queryUpdate, userID, customerID)
	if err != nil {
		return fmt.Errorf("updating stripe customer for %s: %w", userID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating stripe customer for %s: %w", userID, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
