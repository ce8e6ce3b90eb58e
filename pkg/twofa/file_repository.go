package twofa

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const twofaFileName = "twofa.json"

// FileTwoFARepository is an InMemTwoFARepository that writes its full state
// to a JSON file after every change.
type FileTwoFARepository struct {
	*InMemTwoFARepository
	dataDir string
}

// NewFileTwoFARepository creates a file-based 2FA repository in dataDir,
// loading any existing state.
func NewFileTwoFARepository(dataDir string) (*FileTwoFARepository, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileTwoFARepository{
		InMemTwoFARepository: NewInMemTwoFARepository(),
		dataDir:              dataDir,
	}

	s, err := repo.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	repo.restore(s)
	repo.persist = repo.save

	return repo, nil
}

func (r *FileTwoFARepository) load() (snapshot, error) {
	filePath := filepath.Join(r.dataDir, twofaFileName)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return snapshot{}, nil
	}

	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return snapshot{}, fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return s, nil
}

// save writes s to disk atomically through a temp file and rename.
func (r *FileTwoFARepository) save(s snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, twofaFileName+".tmp")
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, twofaFileName)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
