package save

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotExist is returned by Move when the source does not exist.
var ErrNotExist = errors.New("save file does not exist")

// ByteStore is the durable storage a save store writes through.
// Names are flat: they never contain a path separator.
type ByteStore interface {
	// Write creates or replaces name with contents.
	Write(name, contents string) error
	// Read returns the contents of name. A missing name is first
	// created empty, so reading it returns "" and no error.
	Read(name string) (string, error)
	// Move renames oldName to newName, replacing newName if present.
	// Returns an error wrapping ErrNotExist if oldName is missing.
	Move(oldName, newName string) error
}

// Lister is implemented by stores that can enumerate their names.
type Lister interface {
	List() ([]string, error)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("save file name is empty")
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || name == "." || name == ".." {
		return fmt.Errorf("invalid save file name %q", name)
	}
	return nil
}
