package simulator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedAction = errors.New("UnsupportedAction")
	ErrEmptyPath         = errors.New("test path is empty")
	ErrMissingTarget     = errors.New("step target is required")
	ErrUnknownProfile    = errors.New("unknown device or network profile")
)

type Action string

const (
	ActionNavigate Action = "navigate"
	ActionClick    Action = "click"
	ActionType     Action = "type"
	ActionScroll   Action = "scroll"
	ActionWait     Action = "wait"
)

var Actions = []Action{ActionNavigate, ActionClick, ActionType, ActionScroll, ActionWait}

func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionNavigate, ActionClick, ActionType, ActionScroll, ActionWait:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, raw)
}

// Step is one instruction of a test path. Action stays a raw string so a
// path with unknown actions can still be replayed and reported.
type Step struct {
	Action      string `json:"action"`
	Target      string `json:"target,omitempty"`
	X           *int   `json:"x,omitempty"`
	Y           *int   `json:"y,omitempty"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
	Expected    string `json:"expected,omitempty"`
}
