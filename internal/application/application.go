package application

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "bulk-import"

	// EnvPrefix prefixes every environment variable read by the service
	EnvPrefix = "BULK_IMPORT"
)

// Version is set at build time.
var Version = "dev"

var (
	once   sync.Once
	appDir string
	errDir error
)

// GetApplicationDirectory returns the directory holding the ledger and caches.
// Linux: ~/.config/bulk-import (via os.UserConfigDir)
// Windows: C:\Users\{username}\AppData\Local\bulk-import (via os.UserCacheDir)
func GetApplicationDirectory() (string, error) {
	once.Do(lazyLoad)

	return appDir, errDir
}

// DataPath joins name onto the application directory, falling back to the
// working directory when no user directory is available.
func DataPath(name string) string {
	dir, err := GetApplicationDirectory()
	if err != nil {
		return name
	}

	return filepath.Join(dir, name)
}

func lazyLoad() {
	var (
		baseDir string
		err     error
	)

	switch runtime.GOOS {
	case "windows":
		baseDir, err = os.UserCacheDir()
	default:
		baseDir, err = os.UserConfigDir()
	}

	if err != nil {
		errDir = fmt.Errorf("failed to get config directory: %w", err)
		return
	}

	appDir = filepath.Join(baseDir, AppName)
}
