// Package simulator replays scripted interaction paths with human-like
// timing against a device and network profile.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"extgov/core/store"
)

// SlowStepThreshold marks a step as slow for UX scoring.
const SlowStepThreshold = 5000 * time.Millisecond

type Options struct {
	Delays  DelayBounds
	Random  RandomSource
	Sleeper Sleeper
}

type Simulator struct {
	delays  DelayBounds
	random  RandomSource
	sleeper Sleeper
}

func New(opts Options) *Simulator {
	if opts.Random == nil {
		opts.Random = NewRandomSource()
	}
	if opts.Sleeper == nil {
		opts.Sleeper = RealSleeper{}
	}
	if opts.Delays == (DelayBounds{}) {
		opts.Delays = DefaultDelayBounds()
	}
	return &Simulator{delays: opts.Delays, random: opts.Random, sleeper: opts.Sleeper}
}

type Result struct {
	Device     Device                  `json:"device"`
	Network    Network                 `json:"network"`
	Resolution string                  `json:"resolution"`
	UXScore    int                     `json:"ux_score"`
	StepCount  int                     `json:"step_count"`
	Summary    store.SimulationSummary `json:"summary"`
	Steps      []store.SimulationStep  `json:"steps"`
}

// Run executes path in order. A failing step is recorded and the run goes on;
// only ctx ending stops it early, in which case the steps executed so far are
// returned together with the ctx error.
func (s *Simulator) Run(ctx context.Context, path []Step, device Device, network Network) (Result, error) {
	if len(path) == 0 {
		return Result{}, ErrEmptyPath
	}
	if _, ok := resolutions[device]; !ok {
		return Result{}, fmt.Errorf("%w: device %q", ErrUnknownProfile, device)
	}
	if _, ok := networkFactors[network]; !ok {
		return Result{}, fmt.Errorf("%w: network %q", ErrUnknownProfile, network)
	}
	res := Result{
		Device:     device,
		Network:    network,
		Resolution: device.Resolution().String(),
		Steps:      make([]store.SimulationStep, 0, len(path)),
	}
	var runErr error
	for i, step := range path {
		rec, err := s.execute(ctx, i+1, step, device, network)
		res.Steps = append(res.Steps, rec)
		if err != nil {
			runErr = err
			break
		}
	}
	res.StepCount = len(res.Steps)
	res.UXScore = UXScore(res.Steps)
	res.Summary = Summarize(res.Steps)
	return res, runErr
}

func (s *Simulator) execute(ctx context.Context, number int, step Step, device Device, network Network) (store.SimulationStep, error) {
	rec := store.SimulationStep{
		StepNumber: number,
		Action:     step.Action,
		Target:     step.Target,
		X:          step.X,
		Y:          step.Y,
		Metadata:   map[string]string{"device": string(device), "network": string(network)},
	}
	if step.Description != "" {
		rec.Metadata["description"] = step.Description
	}
	if step.Expected != "" {
		rec.Metadata["expected"] = step.Expected
	}
	action, err := ParseAction(step.Action)
	if err != nil {
		return fail(rec, err), nil
	}
	rec.Action = string(action)

	var delay time.Duration
	switch action {
	case ActionNavigate:
		if step.Target == "" {
			return fail(rec, ErrMissingTarget), nil
		}
		delay = s.delays.Navigate.draw(s.random)
	case ActionClick:
		if step.Target == "" && (step.X == nil || step.Y == nil) {
			return fail(rec, ErrMissingTarget), nil
		}
		delay = s.delays.Click.draw(s.random)
	case ActionType:
		rec.Metadata["text"] = step.Text
		for range []rune(step.Text) {
			delay += s.delays.TypeChar.draw(s.random)
		}
	case ActionScroll:
		delay = s.delays.Scroll.draw(s.random)
	case ActionWait:
		delay = s.delays.Wait.draw(s.random)
	default:
		panic("simulator: unhandled action " + string(action))
	}
	// Typing speed is the operator's own; only page work waits on the network.
	if action != ActionType {
		delay = time.Duration(float64(delay) * network.Factor())
	}

	if err := s.sleeper.Sleep(ctx, delay); err != nil {
		rec.DurationMS = delay.Milliseconds()
		return fail(rec, err), err
	}
	rec.DurationMS = delay.Milliseconds()
	rec.Success = true
	rec.Metadata["actual"] = "ok"
	if action == ActionType {
		rec.Metadata["chars"] = strconv.Itoa(len([]rune(step.Text)))
	}
	return rec, nil
}

func fail(rec store.SimulationStep, err error) store.SimulationStep {
	rec.Success = false
	rec.Error = err.Error()
	if errors.Is(err, ErrUnsupportedAction) {
		rec.Error = ErrUnsupportedAction.Error()
		rec.Metadata["detail"] = err.Error()
	}
	return rec
}

// UXScore starts at 100, takes 15 per failed step and 5 per slow step, adds
// 10 when at least 95% of steps succeeded, and clamps to [0,100].
func UXScore(steps []store.SimulationStep) int {
	score := 100
	ok := 0
	for _, st := range steps {
		if st.Success {
			ok++
		} else {
			score -= 15
		}
		if time.Duration(st.DurationMS)*time.Millisecond > SlowStepThreshold {
			score -= 5
		}
	}
	if len(steps) > 0 && ok*100 >= 95*len(steps) {
		score += 10
	}
	return clamp(score, 0, 100)
}

func Summarize(steps []store.SimulationStep) store.SimulationSummary {
	var sum store.SimulationSummary
	if len(steps) == 0 {
		return sum
	}
	sum.MinMS = steps[0].DurationMS
	for _, st := range steps {
		sum.TotalMS += st.DurationMS
		if st.DurationMS < sum.MinMS {
			sum.MinMS = st.DurationMS
		}
		if st.DurationMS > sum.MaxMS {
			sum.MaxMS = st.DurationMS
		}
		if !st.Success {
			sum.Failed++
		}
	}
	sum.AvgMS = sum.TotalMS / int64(len(steps))
	return sum
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
