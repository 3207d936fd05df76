package db

import (
	"database/sql"
	"time"

	"github.com/banterhq/banter/internal/errors"
	"github.com/banterhq/banter/internal/identity"
)

// SaveIdentity inserts or updates the identity for an origin.
// The visitor token and created_at are minted on first save and never change;
// later saves only update the author, email, and updated_at.
func SaveIdentity(db *sql.DB, origin, author string, email *string) (*identity.Identity, error) {
	now := time.Now().Unix()

	existing, err := GetIdentity(db, origin)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		query := `
			UPDATE identities
			SET author = ?, email = ?, updated_at = ?
			WHERE origin = ?
		`
		if _, err := db.Exec(query, author, toNullString(email), now, origin); err != nil {
			return nil, errors.NewInternal(err)
		}
		existing.Author = author
		existing.Email = email
		existing.UpdatedAt = now
		return existing, nil
	}

	token, err := identity.NewVisitorToken()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	query := `
		INSERT INTO identities (origin, author, email, visitor_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := db.Exec(query, origin, author, toNullString(email), token, now, now); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &identity.Identity{
		Origin:       origin,
		Author:       author,
		Email:        email,
		VisitorToken: token,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetIdentity retrieves the identity stored for an origin.
func GetIdentity(db *sql.DB, origin string) (*identity.Identity, error) {
	query := `
		SELECT origin, author, email, visitor_token, created_at, updated_at
		FROM identities
		WHERE origin = ?
	`

	row := db.QueryRow(query, origin)
	ident, err := scanIdentity(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(origin)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return ident, nil
}

// DeleteIdentity removes the identity stored for an origin.
func DeleteIdentity(db *sql.DB, origin string) error {
	result, err := db.Exec(`DELETE FROM identities WHERE origin = ?`, origin)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(origin)
	}

	return nil
}

// ListIdentities returns all stored identities, most recently used first.
func ListIdentities(db *sql.DB) ([]*identity.Identity, error) {
	query := `
		SELECT origin, author, email, visitor_token, created_at, updated_at
		FROM identities
		ORDER BY updated_at DESC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var identities []*identity.Identity
	for rows.Next() {
		var (
			ident identity.Identity
			email sql.NullString
		)
		if err := rows.Scan(&ident.Origin, &ident.Author, &email, &ident.VisitorToken, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		ident.Email = fromNullString(email)
		identities = append(identities, &ident)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return identities, nil
}

// scanIdentity scans a single row into an Identity struct.
func scanIdentity(row *sql.Row) (*identity.Identity, error) {
	var (
		ident identity.Identity
		email sql.NullString
	)

	err := row.Scan(&ident.Origin, &ident.Author, &email, &ident.VisitorToken, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return nil, err
	}

	ident.Email = fromNullString(email)
	return &ident, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
