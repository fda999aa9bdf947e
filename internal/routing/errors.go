package routing

import "errors"

var (
	// ErrNoPathFound means the destination cannot be reached in the network.
	ErrNoPathFound = errors.New("no path found")
	// ErrNoAvailableDeparture means a reachable neighbor has no departure after
	// the order arrives at the current node.
	ErrNoAvailableDeparture = errors.New("no available departure")
	// ErrInvalidInterval means a link arrives before the reference time. The
	// input data is malformed.
	ErrInvalidInterval = errors.New("invalid interval")
)

// IsPlanningFailure reports whether err only affects the order being planned.
func IsPlanningFailure(err error) bool {
	return errors.Is(err, ErrNoPathFound) || errors.Is(err, ErrNoAvailableDeparture)
}
