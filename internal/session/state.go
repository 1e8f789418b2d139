package session

// State describes what the store currently knows about its token record.
type State int

const (
	// StateUnauthenticated means no token record is held.
	StateUnauthenticated State = iota

	// StateValid means the held record is not known to be expired or
	// rejected. The only state in which a request may proceed without
	// waiting.
	StateValid

	// StateRefreshing means a refresh exchange is in flight. At most one
	// such transition exists at a time; other callers await its outcome.
	StateRefreshing

	// StateInvalid means the held access token was observed to no longer
	// work (a 401) but no refresh has started yet.
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}
