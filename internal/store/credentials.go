package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetCredential loads a credential owned by the given company.
// A credential belonging to another company is reported as ErrNotFound
// even if its primary key is guessed.
func (s *Store) GetCredential(ctx context.Context, companyID, credentialID int64) (*Credential, error) {
	const q = `
		SELECT id, company_id, name, email, secret_ciphertext, created_at
		FROM credentials
		WHERE id = $1 AND company_id = $2`

	var c Credential
	err := s.pool.QueryRow(ctx, q, credentialID, companyID).Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.SecretCiphertext, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: credential %d", ErrNotFound, credentialID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading credential %d: %w", credentialID, err)
	}
	return &c, nil
}

// CreateCredential stores a new encrypted credential for a company.
func (s *Store) CreateCredential(ctx context.Context, companyID int64, name, email string, ciphertext []byte) (*Credential, error) {
	const q = `
		INSERT INTO credentials (company_id, name, email, secret_ciphertext)
		VALUES ($1, $2, $3, $4)
		RETURNING id, company_id, name, email, secret_ciphertext, created_at`

	var c Credential
	err := s.pool.QueryRow(ctx, q, companyID, name, email, ciphertext).Scan(
		&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.SecretCiphertext, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating credential: %w", err)
	}
	return &c, nil
}
