package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ticket-portal/internal/status"
	"ticket-portal/models"

	"github.com/pocketbase/dbx"
)

const profilesTable = "users"

var profileColumns = []string{"id", "name", "mobile", "role", "is_active", "partner_code"}

// ProfileStore reads partner and admin profiles out of the auth collection.
type ProfileStore struct {
	conn Conn
}

func NewProfileStore(conn Conn) *ProfileStore {
	return &ProfileStore{conn: conn}
}

func NormalizePartnerCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FindByPartnerCode resolves a referral code regardless of letter case.
func (s *ProfileStore) FindByPartnerCode(ctx context.Context, code string) (*models.Profile, error) {
	code = NormalizePartnerCode(code)
	if code == "" {
		return nil, status.ErrPartnerNotFound
	}

	var profile models.Profile
	err := s.conn.Builder().Select(profileColumns...).
		From(profilesTable).
		Where(dbx.NewExp("UPPER(partner_code) = {:code}", dbx.Params{"code": code})).
		Limit(1).
		WithContext(ctx).
		One(&profile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrPartnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find partner %s: %w", code, err)
	}
	return &profile, nil
}

// Get returns nil without error when the profile no longer exists.
func (s *ProfileStore) Get(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, nil
	}

	var profile models.Profile
	err := s.conn.Builder().Select(profileColumns...).
		From(profilesTable).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&profile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	return &profile, nil
}
