package analytics

import (
	"encoding/json"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

type serviceAccountKey struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// LoadCredentials reads a Google service account key from fs. It checks that
// the fields needed for a JWT token source are present but leaves key parsing
// to the token source.
func LoadCredentials(fs afero.Fs, path string) ([]byte, error) {
	if path == "" {
		return nil, xerrors.New("credentials file path is empty")
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("read credentials file: %w", err)
	}
	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, xerrors.Errorf("decode credentials file %q: %w", path, err)
	}
	if key.Type != "" && key.Type != "service_account" {
		return nil, xerrors.Errorf("credentials file %q has type %q, want service_account", path, key.Type)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, xerrors.Errorf("credentials file %q is missing client_email or private_key", path)
	}
	return data, nil
}
