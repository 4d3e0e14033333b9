package cache

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"

	sqliteFileName = "apigate.db"
)

// Open 根据 driver 选择介质实现。file 驱动以 storagePath 为目录，
// sqlite 驱动在 storagePath 下创建 apigate.db。
func Open(driver, storagePath string, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverFile:
		return NewFileStore(storagePath, opts)
	case DriverSQLite, "sqlite3":
		if storagePath == "" {
			return nil, fmt.Errorf("storage path required")
		}
		return NewSQLiteStore(filepath.Join(storagePath, sqliteFileName), opts)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
