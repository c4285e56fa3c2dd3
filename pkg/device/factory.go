package device

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a device repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
	// Options for the repository
	// If not provided, DefaultDeviceRepositoryOptions() will be used
	Options *DeviceRepositoryOptions
}

// NewDeviceRepository creates a new device repository based on the persistence type
func NewDeviceRepository(persistenceType string, config RepositoryConfig) (DeviceRepository, error) {
	options := DefaultDeviceRepositoryOptions()
	if config.Options != nil {
		options = *config.Options
	}

	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresDeviceRepository(config.DB), nil
	case "memory":
		return NewInMemDeviceRepositoryWithOptions(options), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, memory)", persistenceType)
	}
}
