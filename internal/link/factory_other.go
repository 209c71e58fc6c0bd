//go:build !darwin && !linux

package link

import "github.com/go-ble/ble"

func newDevice() (ble.Device, error) {
	return nil, ErrUnsupportedPlatform
}
