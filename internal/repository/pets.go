package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/petlink/petlink/internal/model"
)

// Common errors for pet repository operations.
var (
	ErrPetNotFound  = errors.New("pet not found")
	ErrPetCodeTaken = errors.New("pet code already taken")
)

const petColumns = `code, name, species, breed, color, sex, birth_date, description, image_url, owner_id, created_at, updated_at`

// PetCodeExists checks if a pet code is already in use.
func (r *Repository) PetCodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM pets WHERE code = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pet code existence: %w", err)
	}

	return exists, nil
}

// CreatePet inserts a new pet. A primary key conflict on the code is
// reported as ErrPetCodeTaken so callers can allocate again.
func (r *Repository) CreatePet(ctx context.Context, pet *model.Pet) error {
	query := `
		INSERT INTO pets (` + petColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		pet.Code,
		pet.Name,
		pet.Species,
		pet.Breed,
		pet.Color,
		pet.Sex,
		pet.BirthDate,
		pet.Description,
		pet.ImageURL,
		pet.OwnerID,
		pet.CreatedAt,
		pet.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPetCodeTaken
		}
		return fmt.Errorf("failed to create pet: %w", err)
	}

	return nil
}

// GetPet retrieves a pet by its code.
// This is the hot path for public lookups.
func (r *Repository) GetPet(ctx context.Context, code string) (*model.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE code = $1`

	pet, err := scanPet(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}

	return pet, nil
}

// ListPetsByOwner returns every pet owned by an account, newest first.
func (r *Repository) ListPetsByOwner(ctx context.Context, ownerID string) ([]*model.Pet, error) {
	query := `SELECT ` + petColumns + ` FROM pets WHERE owner_id = $1 ORDER BY created_at DESC, code`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pets: %w", err)
	}
	defer rows.Close()

	pets := make([]*model.Pet, 0)
	for rows.Next() {
		pet, err := scanPet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pet: %w", err)
		}
		pets = append(pets, pet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pets: %w", err)
	}

	return pets, nil
}

// UpdatePet overwrites a pet's mutable fields. Code and owner are never changed.
func (r *Repository) UpdatePet(ctx context.Context, pet *model.Pet) error {
	query := `
		UPDATE pets
		SET name = $2, species = $3, breed = $4, color = $5, sex = $6,
		    birth_date = $7, description = $8, image_url = $9, updated_at = $10
		WHERE code = $1
	`

	result, err := r.pool.Exec(ctx, query,
		pet.Code,
		pet.Name,
		pet.Species,
		pet.Breed,
		pet.Color,
		pet.Sex,
		pet.BirthDate,
		pet.Description,
		pet.ImageURL,
		pet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update pet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPetNotFound
	}

	return nil
}

// DeletePet removes a pet. Its code becomes available for allocation again.
func (r *Repository) DeletePet(ctx context.Context, code string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pets WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("failed to delete pet: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPetNotFound
	}

	return nil
}

// scanPet scans a single row into a Pet model.
func scanPet(row pgx.Row) (*model.Pet, error) {
	var pet model.Pet
	err := row.Scan(
		&pet.Code,
		&pet.Name,
		&pet.Species,
		&pet.Breed,
		&pet.Color,
		&pet.Sex,
		&pet.BirthDate,
		&pet.Description,
		&pet.ImageURL,
		&pet.OwnerID,
		&pet.CreatedAt,
		&pet.UpdatedAt,
	)
	return &pet, err
}
