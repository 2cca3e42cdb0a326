//go:build windows

package transport

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func setSocketOptions(fd uintptr, reusePort bool) error {
	handle := windows.Handle(fd)

	if err := windows.SetsockoptInt(handle, windows.SOL_SOCKET, windows.SO_BROADCAST, 1); err != nil {
		return fmt.Errorf("set SO_BROADCAST: %w", err)
	}

	if !reusePort {
		return nil
	}

	// Windows has no SO_REUSEPORT; SO_REUSEADDR covers both.
	if err := windows.SetsockoptInt(handle, windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", err)
	}

	return nil
}
