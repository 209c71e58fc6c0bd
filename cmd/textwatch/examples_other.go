//go:build !darwin

package main

const (
	exampleDeviceAddress = "B0:B4:48:C9:4E:01"
	deviceAddressNote    = "Device address format: MAC address, e.g. B0:B4:48:C9:4E:01"
)
