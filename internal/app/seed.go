package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/ranked/internal/domain/model"
	"github.com/okian/ranked/pkg/logger"
)

// SeedFile is the YAML layout accepted by WithSeedFile.
type SeedFile struct {
	Profiles []model.Profile `yaml:"profiles"`
}

// seed creates every profile in path, skipping ids that already exist.
func (s *Service) seed(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	var file SeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}

	created := 0
	for i, p := range file.Profiles {
		_, err := s.store.Create(ctx, p)
		switch {
		case err == nil:
			created++
		case errors.Is(err, model.ErrAlreadyExists):
			s.logger.Debug(ctx, "seed profile exists", logger.String("id", p.ID))
		default:
			return created, fmt.Errorf("profile %d (%s): %w", i, p.ID, err)
		}
	}
	return created, nil
}
