//go:build !windows

package capture

import "github.com/bryanchriswhite/wincap/internal/wincap"

func newWindowsFacade() (*Facade, func() error, error) {
	return nil, nil, wincap.NewError(wincap.ErrBackendUnavailable, "windows", "windows backend is not available on this platform")
}
