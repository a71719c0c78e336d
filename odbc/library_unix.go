//go:build !windows
// +build !windows

// Package odbc drives an ODBC driver manager through the sqlcli primitives.
package odbc

import (
	"errors"

	"github.com/ebitengine/purego"
)

// openLibrary loads a shared library using purego.
func openLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}

func closeLibrary(handle uintptr) {
	if handle != 0 {
		purego.Dlclose(handle)
	}
}

func symbol(handle uintptr, name string) (uintptr, error) {
	if handle == 0 {
		return 0, errors.New("invalid library handle")
	}
	return purego.Dlsym(handle, name)
}
