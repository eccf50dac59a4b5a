package simulator

import (
	"fmt"
	"strings"
)

type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var resolutions = map[Device]Resolution{
	DeviceDesktop: {Width: 1920, Height: 1080},
	DeviceMobile:  {Width: 375, Height: 667},
	DeviceTablet:  {Width: 768, Height: 1024},
}

func ParseDevice(raw string) (Device, error) {
	d := Device(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := resolutions[d]; !ok {
		return "", fmt.Errorf("%w: device %q", ErrUnknownProfile, raw)
	}
	return d, nil
}

func (d Device) Resolution() Resolution {
	return resolutions[d]
}

type Network string

const (
	Network3G   Network = "3g"
	Network4G   Network = "4g"
	Network5G   Network = "5g"
	NetworkWiFi Network = "wifi"
)

// Latency multipliers applied to every drawn step delay.
var networkFactors = map[Network]float64{
	Network3G:   2.5,
	Network4G:   1.3,
	Network5G:   1.0,
	NetworkWiFi: 1.0,
}

// ParseNetwork defaults an empty value to wifi.
func ParseNetwork(raw string) (Network, error) {
	n := Network(strings.ToLower(strings.TrimSpace(raw)))
	if n == "" {
		return NetworkWiFi, nil
	}
	if _, ok := networkFactors[n]; !ok {
		return "", fmt.Errorf("%w: network %q", ErrUnknownProfile, raw)
	}
	return n, nil
}

func (n Network) Factor() float64 {
	if f, ok := networkFactors[n]; ok {
		return f
	}
	return 1.0
}
