package brain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SargassoLLC/anemone/core/types"
)

const identityFilename = "identity.json"

// LoadIdentity reads an agent's identity record from its root directory.
func LoadIdentity(envPath string) (types.Identity, error) {
	data, err := os.ReadFile(filepath.Join(envPath, identityFilename))
	if err != nil {
		return types.Identity{}, fmt.Errorf("loading identity: %w", err)
	}
	var identity types.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return types.Identity{}, fmt.Errorf("parsing identity: %w", err)
	}
	return identity, nil
}

// SaveIdentity persists an identity record, creating the directory if
// needed.
func SaveIdentity(identity types.Identity, envPath string) error {
	if err := os.MkdirAll(envPath, 0o755); err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	if err := os.WriteFile(filepath.Join(envPath, identityFilename), data, 0o644); err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	return nil
}
