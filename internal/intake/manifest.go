package intake

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/sortie/internal/model"
)

// LoadManifest reads a JSON array of inbound messages.
func LoadManifest(path string) ([]model.InboundMessage, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied manifest path
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var messages []model.InboundMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return messages, nil
}

// WriteManifest writes messages as an indented JSON array.
func WriteManifest(path string, messages []model.InboundMessage) error {
	if messages == nil {
		messages = []model.InboundMessage{}
	}
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
