//go:build windows

package capture

import (
	winbackend "github.com/bryanchriswhite/wincap/internal/backend/windows"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

func newWindowsFacade() (*Facade, func() error, error) {
	b, err := winbackend.New()
	if err != nil {
		return nil, nil, wincap.WrapError(wincap.ErrBackendUnavailable, "windows", err, "initialize windows backend")
	}
	return NewFacade(b), func() error { return nil }, nil
}
