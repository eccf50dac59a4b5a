package stress

import (
	"fmt"
	"strings"

	"extgov/config"
	"extgov/core/simulator"
)

type TestType string

const (
	TestLoad    TestType = "load"
	TestUI      TestType = "ui"
	TestMobile  TestType = "mobile"
	TestNetwork TestType = "network"
)

func ParseTestType(raw string) (TestType, error) {
	t := TestType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TestLoad, TestUI, TestMobile, TestNetwork:
		return t, nil
	}
	return "", fmt.Errorf("%w: test type %q", ErrInvalidMatrix, raw)
}

type MatrixConfig struct {
	TestTypes []TestType          `json:"test_types"`
	Devices   []simulator.Device  `json:"devices"`
	Networks  []simulator.Network `json:"networks"`
}

// DefaultMatrix is the full 4x3x4 grid.
func DefaultMatrix() MatrixConfig {
	return MatrixConfig{
		TestTypes: []TestType{TestLoad, TestUI, TestMobile, TestNetwork},
		Devices:   []simulator.Device{simulator.DeviceDesktop, simulator.DeviceMobile, simulator.DeviceTablet},
		Networks:  []simulator.Network{simulator.Network3G, simulator.Network4G, simulator.Network5G, simulator.NetworkWiFi},
	}
}

func MatrixFromConfig(c config.MatrixConfig) (MatrixConfig, error) {
	return ParseMatrix(c.TestTypes, c.Devices, c.Networks)
}

// ParseMatrix builds a matrix from raw names. An empty dimension falls back
// to its default set.
func ParseMatrix(testTypes, devices, networks []string) (MatrixConfig, error) {
	def := DefaultMatrix()
	m := MatrixConfig{}
	for _, raw := range testTypes {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		t, err := ParseTestType(raw)
		if err != nil {
			return MatrixConfig{}, err
		}
		m.TestTypes = appendUnique(m.TestTypes, t)
	}
	for _, raw := range devices {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		d, err := simulator.ParseDevice(raw)
		if err != nil {
			return MatrixConfig{}, fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
		}
		m.Devices = appendUnique(m.Devices, d)
	}
	for _, raw := range networks {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := simulator.ParseNetwork(raw)
		if err != nil {
			return MatrixConfig{}, fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
		}
		m.Networks = appendUnique(m.Networks, n)
	}
	if len(m.TestTypes) == 0 {
		m.TestTypes = def.TestTypes
	}
	if len(m.Devices) == 0 {
		m.Devices = def.Devices
	}
	if len(m.Networks) == 0 {
		m.Networks = def.Networks
	}
	return m, nil
}

func appendUnique[T comparable](in []T, v T) []T {
	for _, x := range in {
		if x == v {
			return in
		}
	}
	return append(in, v)
}

type Cell struct {
	Index    int
	TestType TestType
	Device   simulator.Device
	Network  simulator.Network
}

func (m MatrixConfig) Size() int {
	return len(m.TestTypes) * len(m.Devices) * len(m.Networks)
}

// Each yields cells one at a time in test type, device, network order and
// stops when fn returns false.
func (m MatrixConfig) Each(fn func(Cell) bool) {
	i := 0
	for _, t := range m.TestTypes {
		for _, d := range m.Devices {
			for _, n := range m.Networks {
				if !fn(Cell{Index: i, TestType: t, Device: d, Network: n}) {
					return
				}
				i++
			}
		}
	}
}
