package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
)

// QueryTimer records database query timings. Satisfied by the metrics
// service; nil disables instrumentation.
type QueryTimer interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// ProfileRepository persists student profiles. Terms, settings and the
// import history live in JSONB columns: the profile is an aggregate
// that is always read and replaced whole.
type ProfileRepository struct {
	db    *sqlx.DB
	timer QueryTimer
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *sqlx.DB, timer QueryTimer) *ProfileRepository {
	return &ProfileRepository{db: db, timer: timer}
}

type profileRow struct {
	UserRandom string    `db:"user_random"`
	Valid      bool      `db:"valid"`
	Nom        string    `db:"nom"`
	Settings   []byte    `db:"settings"`
	Etape1     []byte    `db:"etape1"`
	Etape2     []byte    `db:"etape2"`
	Etape3     []byte    `db:"etape3"`
	Historique []byte    `db:"historique"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Get loads one profile by its opaque identifier.
func (r *ProfileRepository) Get(ctx context.Context, userRandom string) (*models.Profile, error) {
	const query = `SELECT user_random, valid, nom, settings, etape1, etape2, etape3, historique, created_at, updated_at
        FROM profiles WHERE user_random = $1`

	start := time.Now()
	var row profileRow
	err := r.db.GetContext(ctx, &row, query, userRandom)
	r.observe("profile_get", start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get profile %s: %w", userRandom, err)
	}
	return row.toModel()
}

// Upsert writes the whole profile in one atomic replace.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	row, err := rowFromModel(profile)
	if err != nil {
		return err
	}

	const query = `INSERT INTO profiles (user_random, valid, nom, settings, etape1, etape2, etape3, historique, created_at, updated_at)
        VALUES (:user_random, :valid, :nom, :settings, :etape1, :etape2, :etape3, :historique, :created_at, :updated_at)
        ON CONFLICT (user_random)
        DO UPDATE SET valid = EXCLUDED.valid, nom = EXCLUDED.nom, settings = EXCLUDED.settings,
            etape1 = EXCLUDED.etape1, etape2 = EXCLUDED.etape2, etape3 = EXCLUDED.etape3,
            historique = EXCLUDED.historique, updated_at = EXCLUDED.updated_at`

	start := time.Now()
	_, err = r.db.NamedExecContext(ctx, query, row)
	r.observe("profile_upsert", start)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", profile.UserRandom, err)
	}
	return nil
}

// Delete removes a profile.
func (r *ProfileRepository) Delete(ctx context.Context, userRandom string) error {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_random = $1`, userRandom)
	r.observe("profile_delete", start)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", userRandom, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.ErrNotFound
	}
	return nil
}

// Healthy reports whether the database answers a ping.
func (r *ProfileRepository) Healthy(ctx context.Context) bool {
	if r.db == nil {
		return false
	}
	return r.db.PingContext(ctx) == nil
}

func (r *ProfileRepository) observe(label string, start time.Time) {
	if r.timer != nil {
		r.timer.ObserveDBQuery(label, time.Since(start))
	}
}

func rowFromModel(profile *models.Profile) (*profileRow, error) {
	row := &profileRow{
		UserRandom: profile.UserRandom,
		Valid:      profile.Valid,
		Nom:        profile.Nom,
		CreatedAt:  profile.CreatedAt,
		UpdatedAt:  profile.UpdatedAt,
	}

	var err error
	if row.Settings, err = json.Marshal(profile.Settings); err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	if row.Etape1, err = marshalOptional(profile.Etape1); err != nil {
		return nil, err
	}
	if row.Etape2, err = marshalOptional(profile.Etape2); err != nil {
		return nil, err
	}
	if row.Etape3, err = marshalOptional(profile.Etape3); err != nil {
		return nil, err
	}
	if row.Historique, err = marshalOptional(profile.Historique); err != nil {
		return nil, err
	}
	return row, nil
}

func (row *profileRow) toModel() (*models.Profile, error) {
	profile := &models.Profile{
		UserRandom: row.UserRandom,
		Valid:      row.Valid,
		Nom:        row.Nom,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}

	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &profile.Settings); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	if err := unmarshalOptional(row.Etape1, &profile.Etape1); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(row.Etape2, &profile.Etape2); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(row.Etape3, &profile.Etape3); err != nil {
		return nil, err
	}
	if err := unmarshalOptional(row.Historique, &profile.Historique); err != nil {
		return nil, err
	}
	return profile, nil
}

func marshalOptional(value interface{}) ([]byte, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal profile field: %w", err)
	}
	return payload, nil
}

func unmarshalOptional(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal profile field: %w", err)
	}
	return nil
}
