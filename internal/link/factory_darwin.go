//go:build darwin

package link

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newDevice() (ble.Device, error) {
	d, err := darwin.NewDevice()
	if err != nil {
		return nil, err
	}
	return d, nil
}
