package repository

import (
	"fmt"
	"strings"
)

// OpenStore は storage.driver に応じた永続化層を返す
func OpenStore(cfg StorageConfig) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return NewMemoryRepository(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteRepository(cfg.Path)
	case "dynamodb", "dynamo":
		return NewDynamoDBRepository()
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
