package login

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const usersFileName = "users.json"

// FileUserRepository is an InMemUserRepository that writes all users to a
// JSON file after every change.
type FileUserRepository struct {
	*InMemUserRepository
	dataDir string
}

func NewFileUserRepository(dataDir string) (*FileUserRepository, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileUserRepository{
		InMemUserRepository: NewInMemUserRepository(),
		dataDir:             dataDir,
	}

	data, err := os.ReadFile(filepath.Join(dataDir, usersFileName))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read file: %w", err)
	case len(data) > 0:
		var users []User
		if err := json.Unmarshal(data, &users); err != nil {
			return nil, fmt.Errorf("failed to unmarshal data: %w", err)
		}
		repo.restore(users)
	}
	repo.persist = repo.writeFile

	return repo, nil
}

// writeFile writes users atomically through a temp file and rename.
func (r *FileUserRepository) writeFile(users []User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, usersFileName+".tmp")
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(r.dataDir, usersFileName)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
