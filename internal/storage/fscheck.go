package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// checkLocalFilesystem rejects SQLite paths on network filesystems, where
// file locking is unreliable.
func checkLocalFilesystem(path string) error {
	return checkLocalFilesystemWith(path, filesystemType)
}

func checkLocalFilesystemWith(path string, detect func(string) (string, error)) error {
	existing, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve sqlite path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	if err != nil {
		// Unknown platforms cannot be checked; SQLite will surface real problems.
		return nil
	}
	if isNetworkFilesystem(fsType) {
		return fmt.Errorf("sqlite path %q is on network filesystem %q; point store.dsn at local disk or use a redis:// or postgres:// store", path, fsType)
	}
	return nil
}

// nearestExistingPath walks up from path until it finds something on disk, so
// a database file that does not exist yet is checked via its parent.
func nearestExistingPath(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent directory")
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, ok := networkFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
	return ok
}
