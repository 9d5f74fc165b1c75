package flowchart

import "errors"

var (
	ErrInvalidStart      = errors.New("invalid start node")
	ErrNotADecision      = errors.New("node is not a decision")
	ErrInvalidChoice     = errors.New("choice index out of range")
	ErrDanglingTarget    = errors.New("target node does not exist")
	ErrEmptyTrail        = errors.New("nothing to go back to")
	ErrNodeNotFound      = errors.New("node not found")
	ErrNotActive         = errors.New("session is not active")
	ErrChoiceUnavailable = errors.New("choice condition not satisfied")
)

var ErrUnknownKind = errors.New("unknown node kind")
