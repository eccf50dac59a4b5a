package stress

import (
	"context"
	"math"
	"time"

	"extgov/core/simulator"
	"extgov/core/store"
	"golang.org/x/time/rate"
)

const (
	maxPathRoutes     = 5
	maxPathComponents = 5
	maxRequests       = 400
	requestTimeout    = 2 * time.Second
)

type deviceProfile struct {
	memoryBudgetMB float64
	memFactor      float64
	cpuFactor      float64
	baseLatency    time.Duration
}

var deviceProfiles = map[simulator.Device]deviceProfile{
	simulator.DeviceDesktop: {memoryBudgetMB: 1024, memFactor: 1.0, cpuFactor: 1.0, baseLatency: 20 * time.Millisecond},
	simulator.DeviceTablet:  {memoryBudgetMB: 512, memFactor: 1.2, cpuFactor: 1.4, baseLatency: 35 * time.Millisecond},
	simulator.DeviceMobile:  {memoryBudgetMB: 256, memFactor: 1.5, cpuFactor: 1.8, baseLatency: 50 * time.Millisecond},
}

// Requests per second the host sustains for one extension on each network.
var networkCapacity = map[simulator.Network]float64{
	simulator.Network3G:   50,
	simulator.Network4G:   150,
	simulator.Network5G:   250,
	simulator.NetworkWiFi: 250,
}

// Per-mille request loss used by network scenarios.
var networkLoss = map[simulator.Network]int64{
	simulator.Network3G:   50,
	simulator.Network4G:   10,
	simulator.Network5G:   5,
	simulator.NetworkWiFi: 0,
}

// SyntheticExecutor drives ui and mobile cells through the behavior
// simulator and models load and network cells as paced request bursts.
type SyntheticExecutor struct {
	sim    *simulator.Simulator
	random simulator.RandomSource
}

func NewSyntheticExecutor(sim *simulator.Simulator, random simulator.RandomSource) *SyntheticExecutor {
	if random == nil {
		random = simulator.NewRandomSource()
	}
	return &SyntheticExecutor{sim: sim, random: random}
}

func (e *SyntheticExecutor) Execute(ctx context.Context, ext store.Extension, cell Cell) (Measurement, error) {
	switch cell.TestType {
	case TestUI, TestMobile:
		return e.interaction(ctx, ext, cell)
	case TestLoad:
		return e.burst(ctx, ext, cell, false)
	case TestNetwork:
		return e.burst(ctx, ext, cell, true)
	default:
		panic("stress: unhandled test type " + string(cell.TestType))
	}
}

// InteractionPath derives a test path from the routes and components ext claims.
func InteractionPath(ext store.Extension, t TestType) []simulator.Step {
	routes := ext.Routes
	if len(routes) == 0 {
		routes = []string{"/"}
	}
	if len(routes) > maxPathRoutes {
		routes = routes[:maxPathRoutes]
	}
	components := ext.Components
	if len(components) > maxPathComponents {
		components = components[:maxPathComponents]
	}
	var path []simulator.Step
	for _, r := range routes {
		path = append(path, simulator.Step{Action: string(simulator.ActionNavigate), Target: r, Expected: "page rendered"})
		if t == TestMobile {
			path = append(path, simulator.Step{Action: string(simulator.ActionScroll), Description: "touch scroll"})
		}
	}
	for _, c := range components {
		path = append(path, simulator.Step{Action: string(simulator.ActionClick), Target: c, Expected: c + " responds"})
	}
	path = append(path,
		simulator.Step{Action: string(simulator.ActionType), Target: "input", Text: "stress test input"},
		simulator.Step{Action: string(simulator.ActionWait), Description: "settle"},
	)
	return path
}

func footprint(ext store.Extension) float64 {
	return float64(len(ext.Files) + len(ext.Routes) + len(ext.Components) + len(ext.Stylesheets) +
		len(ext.GlobalState) + len(ext.Dependencies) + len(ext.APIEndpoints))
}

func (e *SyntheticExecutor) interaction(ctx context.Context, ext store.Extension, cell Cell) (Measurement, error) {
	prof := deviceProfiles[cell.Device]
	res, err := e.sim.Run(ctx, InteractionPath(ext, cell.TestType), cell.Device, cell.Network)
	if err != nil {
		return Measurement{}, err
	}
	navigations := len(ext.Routes)
	if navigations == 0 {
		navigations = 1
	}
	growth := 0.5 * float64(len(ext.GlobalState)*navigations)
	m := Measurement{
		Duration:   time.Duration(res.Summary.TotalMS) * time.Millisecond,
		RenderMS:   res.Summary.AvgMS,
		ErrorCount: res.Summary.Failed,
		MemoryLeak: growth > 8,
	}
	m.MemoryMB = (30+2*footprint(ext))*prof.memFactor + growth
	m.CPUPercent = math.Min(100, (15+1.5*footprint(ext)+float64(m.RenderMS)/100)*prof.cpuFactor)
	m.Crash = m.MemoryMB > prof.memoryBudgetMB

	perf := res.UXScore
	if m.RenderMS > 800 {
		perf -= int((m.RenderMS - 800) / 50)
	}
	if m.MemoryMB > prof.memoryBudgetMB/2 {
		perf -= 10
	}
	if m.CPUPercent > 80 {
		perf -= 10
	}
	m.PerformanceScore = clamp(perf, 0, 100)
	return m, nil
}

// burst fires a synthetic request burst at the host and paces it with a
// token bucket on a virtual clock, so the cell costs no wall time.
func (e *SyntheticExecutor) burst(ctx context.Context, ext store.Extension, cell Cell, lossy bool) (Measurement, error) {
	prof := deviceProfiles[cell.Device]
	capacity := networkCapacity[cell.Network]
	requests := 40 + 20*len(ext.APIEndpoints) + 5*len(ext.Routes)
	if requests > maxRequests {
		requests = maxRequests
	}
	lim := rate.NewLimiter(rate.Limit(capacity), 20)
	start := time.Unix(0, 0)

	var (
		failures     int
		served       int
		totalLatency time.Duration
		maxLatency   time.Duration
	)
	for i := 0; i < requests; i++ {
		if i%32 == 0 {
			if err := ctx.Err(); err != nil {
				return Measurement{}, err
			}
		}
		latency := prof.baseLatency + lim.ReserveN(start, 1).DelayFrom(start)
		if lossy && networkLoss[cell.Network] > 0 && e.random.Int64N(1000) < networkLoss[cell.Network] {
			failures++
			continue
		}
		if latency > requestTimeout {
			failures++
			continue
		}
		served++
		totalLatency += latency
		if latency > maxLatency {
			maxLatency = latency
		}
	}
	errorRate := float64(failures) / float64(requests)
	var avg time.Duration
	if served > 0 {
		avg = totalLatency / time.Duration(served)
	}
	growth := 0.02 * float64(requests*len(ext.GlobalState))
	m := Measurement{
		Duration:   maxLatency,
		RenderMS:   avg.Milliseconds(),
		ErrorCount: failures,
		HardFault:  errorRate > 0.2,
		Crash:      errorRate > 0.6,
		MemoryLeak: growth > 8,
	}
	m.MemoryMB = (30+2*footprint(ext))*prof.memFactor + 0.05*float64(requests) + growth
	m.CPUPercent = math.Min(100, float64(requests)/capacity*50*prof.cpuFactor)
	perf := 100 - int(math.Round(errorRate*100)) - int(avg.Milliseconds()/20)
	m.PerformanceScore = clamp(perf, 0, 100)
	return m, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
