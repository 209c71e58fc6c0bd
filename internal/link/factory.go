package link

import "errors"

// ErrUnsupportedPlatform is returned by DeviceFactory where no BLE backend exists.
var ErrUnsupportedPlatform = errors.New("BLE is not supported on this platform")

// DeviceFactory creates the host BLE device. Overridden in tests.
var DeviceFactory = newDevice
