//go:build windows

package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const (
	runKey       = `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`
	autostartVal = "PenTarget"
)

// AutostartEnabled reports whether the per-user Run entry exists.
func AutostartEnabled() bool {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKey, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer key.Close()

	_, _, err = key.GetStringValue(autostartVal)
	return err == nil
}

// SetAutostart adds or removes the Run entry launching this executable with
// args at logon. Removing a missing entry is not an error.
func SetAutostart(enabled bool, args ...string) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKey, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer key.Close()

	if !enabled {
		if err := key.DeleteValue(autostartVal); err != nil && !errors.Is(err, registry.ErrNotExist) {
			return err
		}
		return nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return err
	}
	return key.SetStringValue(autostartVal, commandLine(filepath.Clean(exePath), args))
}

func commandLine(exe string, args []string) string {
	parts := []string{quote(exe)}
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
