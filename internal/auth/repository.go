package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresUserStore struct {
	DB DB
}

func NewPostgresUserStore(db DB) *PostgresUserStore {
	return &PostgresUserStore{DB: db}
}

const userColumns = `id, email, name, profile_photo_url, password_hash, google_subject_id, is_verified,
	verification_code_hash, verification_code_expires_at,
	reset_code_hash, reset_code_expires_at,
	change_password_code_hash, change_password_code_expires_at,
	created_at, updated_at`

const pgUniqueViolation = "23505"

var codeColumns = map[CodeKind][2]string{
	CodeVerification:   {"verification_code_hash", "verification_code_expires_at"},
	CodeReset:          {"reset_code_hash", "reset_code_expires_at"},
	CodeChangePassword: {"change_password_code_hash", "change_password_code_expires_at"},
}

func (r *PostgresUserStore) FindByEmail(ctx context.Context, email string, opts ...ReadOption) (*User, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, NormalizeEmail(email))
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return collectReadOptions(opts).project(user), nil
}

func (r *PostgresUserStore) FindByID(ctx context.Context, id string, opts ...ReadOption) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return collectReadOptions(opts).project(user), nil
}

func (r *PostgresUserStore) Create(ctx context.Context, nu NewUser) (*User, error) {
	id := uuid.NewString()
	args := []any{
		id,
		NormalizeEmail(nu.Email),
		nu.Name,
		nu.ProfilePhotoURL,
		nu.PasswordHash,
		nu.GoogleSubjectID,
		nu.IsVerified,
	}
	for _, kind := range []CodeKind{CodeVerification, CodeReset, CodeChangePassword} {
		if c, ok := nu.Codes[kind]; ok {
			args = append(args, c.Hash, c.ExpiresAt)
		} else {
			args = append(args, nil, nil)
		}
	}

	row := r.DB.QueryRow(ctx, `
		INSERT INTO users (id, email, name, profile_photo_url, password_hash, google_subject_id, is_verified,
			verification_code_hash, verification_code_expires_at,
			reset_code_hash, reset_code_expires_at,
			change_password_code_hash, change_password_code_expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING `+userColumns, args...)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", mapPgError(err))
	}
	return readOptions{}.project(user), nil
}

func (r *PostgresUserStore) Update(ctx context.Context, id string, patch UserPatch) (*User, error) {
	if patch.empty() {
		return r.FindByID(ctx, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	sets, args := patchSets(patch)
	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE users
		SET %s, updated_at=now()
		WHERE id=$%d
		RETURNING %s`, strings.Join(sets, ", "), len(args), userColumns)

	user, err := scanUser(r.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", mapPgError(err))
	}
	return readOptions{}.project(user), nil
}

func (r *PostgresUserStore) ConsumeCode(ctx context.Context, id string, kind CodeKind, codeHash string, patch UserPatch) (*User, error) {
	cols, ok := codeColumns[kind]
	if !ok {
		return nil, fmt.Errorf("consume code: unknown kind %q", kind)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrCodeNotMatched
	}

	patch.ClearCodes = append(patch.ClearCodes, kind)
	sets, args := patchSets(patch)
	args = append(args, id, codeHash)
	query := fmt.Sprintf(`
		UPDATE users
		SET %s, updated_at=now()
		WHERE id=$%d AND %s=$%d
		RETURNING %s`, strings.Join(sets, ", "), len(args)-1, cols[0], len(args), userColumns)

	user, err := scanUser(r.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCodeNotMatched
	}
	if err != nil {
		return nil, fmt.Errorf("consume %s code: %w", kind, mapPgError(err))
	}
	return readOptions{}.project(user), nil
}

// patchSets builds SET fragments in a fixed column order so queries are stable.
func patchSets(patch UserPatch) ([]string, []any) {
	sets := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.ProfilePhotoURL != nil {
		add("profile_photo_url", *patch.ProfilePhotoURL)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.GoogleSubjectID != nil {
		add("google_subject_id", *patch.GoogleSubjectID)
	}
	if patch.IsVerified != nil {
		add("is_verified", *patch.IsVerified)
	}

	cleared := make(map[CodeKind]bool, len(patch.ClearCodes))
	for _, kind := range patch.ClearCodes {
		cleared[kind] = true
	}
	for _, kind := range []CodeKind{CodeVerification, CodeReset, CodeChangePassword} {
		cols := codeColumns[kind]
		if c, ok := patch.SetCodes[kind]; ok {
			add(cols[0], c.Hash)
			add(cols[1], c.ExpiresAt)
		} else if cleared[kind] {
			sets = append(sets, cols[0]+"=NULL", cols[1]+"=NULL")
		}
	}
	return sets, args
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicateIdentity)
	}
	return err
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u                User
		profilePhoto     sql.NullString
		passwordHash     sql.NullString
		googleSubject    sql.NullString
		verificationHash sql.NullString
		verificationExp  sql.NullTime
		resetHash        sql.NullString
		resetExp         sql.NullTime
		changePassHash   sql.NullString
		changePassExp    sql.NullTime
	)

	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&profilePhoto,
		&passwordHash,
		&googleSubject,
		&u.IsVerified,
		&verificationHash,
		&verificationExp,
		&resetHash,
		&resetExp,
		&changePassHash,
		&changePassExp,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	u.ProfilePhotoURL = nullStringPtr(profilePhoto)
	u.PasswordHash = nullStringPtr(passwordHash)
	u.HasPassword = passwordHash.Valid
	u.GoogleSubjectID = nullStringPtr(googleSubject)
	u.VerificationCode = nullCode(verificationHash, verificationExp)
	u.ResetCode = nullCode(resetHash, resetExp)
	u.ChangePasswordCode = nullCode(changePassHash, changePassExp)
	return &u, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullCode(hash sql.NullString, exp sql.NullTime) *Code {
	if !hash.Valid || !exp.Valid {
		return nil
	}
	return &Code{Hash: hash.String, ExpiresAt: exp.Time.UTC()}
}

