package syncer

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tagvaultapp/tagvault-server/internal/domain"
)

// infoFileName is the optional descriptor file at the repository root.
const infoFileName = ".tagvault.yml"

type infoFile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Public      bool     `yaml:"public"`
	Language    string   `yaml:"language"`
	Category    []string `yaml:"category"`
}

// parseInfoFile decodes the repository descriptor into meta.
func parseInfoFile(content string) (domain.RepositoryMeta, error) {
	var info infoFile
	if err := yaml.Unmarshal([]byte(content), &info); err != nil {
		return domain.RepositoryMeta{}, fmt.Errorf("decode %s: %w", infoFileName, err)
	}
	return domain.RepositoryMeta{
		Name:        info.Name,
		Description: info.Description,
		Public:      info.Public,
		Language:    info.Language,
		Categories:  info.Category,
	}, nil
}
