package encryption

import (
	"fmt"

	"fo-go/internal/config"
	"fo-go/internal/fo"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// An empty type disables encryption: backups are uploaded as-is and the
// returned Encryptor is nil.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (fo.Encryptor, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
