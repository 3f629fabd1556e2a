package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileConfig configures the "file" loader, typically pointed at a mounted
// Kubernetes secret volume.
type FileConfig struct {
	SecretsDir string `yaml:"secrets_dir"`
}

func (f FileConfig) Validate() error {
	if f.SecretsDir == "" {
		return errors.New("secrets_dir is required for file loader")
	}
	info, err := os.Stat(f.SecretsDir)
	if os.IsNotExist(err) {
		return errors.Errorf("secrets_dir %q does not exist", f.SecretsDir)
	}
	if err != nil {
		return errors.Wrapf(err, "error accessing secrets_dir %q", f.SecretsDir)
	}
	if !info.IsDir() {
		return errors.Errorf("secrets_dir %q is not a directory", f.SecretsDir)
	}
	return nil
}

// CreateClient implements config.ClientFactory[*FileLoader].
func (f FileConfig) CreateClient() (*FileLoader, error) {
	return NewFileLoader(f.SecretsDir)
}

// FileLoader reads one secret per file; contents are trimmed.
//
//	token: ${file:vault-token}  # <secretsDir>/vault-token
type FileLoader struct {
	dir string
}

func NewFileLoader(secretsDir string) (*FileLoader, error) {
	if secretsDir == "" {
		return nil, errors.New("no secrets directory configured")
	}
	abs, err := filepath.Abs(secretsDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path for secrets directory")
	}
	return &FileLoader{dir: abs}, nil
}

func (f *FileLoader) Resolve(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("no file specified for file secret")
	}
	if filepath.IsAbs(key) {
		return "", errors.New("invalid secret key: absolute paths not allowed")
	}
	clean := filepath.Clean(key)
	if strings.Contains(clean, "..") {
		return "", errors.New("invalid secret key: path traversal detected")
	}

	path := filepath.Join(f.dir, clean)
	if !strings.HasPrefix(path, f.dir+string(filepath.Separator)) {
		return "", errors.New("invalid secret key: outside secrets directory")
	}

	// #nosec G304 -- path is confined to the secrets directory above
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("secret %q not found", key)
		}
		return "", errors.Wrapf(err, "failed to read secret %q", key)
	}

	log.Debug().Str("file", path).Msg("Resolved secret from file")
	return strings.TrimSpace(string(content)), nil
}

func (f *FileLoader) Name() string {
	return "File"
}
