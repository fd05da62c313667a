package schedule

// Reason explains an entry's open/closed state.
type Reason string

const (
	ReasonOpen           Reason = "open"
	ReasonScheduleLocked Reason = "schedule_locked"
	ReasonManuallyPaused Reason = "manually_paused"
	ReasonSoldOut        Reason = "sold_out"
)

// State is the resolved availability of a single entry.
type State struct {
	Open   bool   `json:"open"`
	Reason Reason `json:"reason"`
}

// SoldOutOverride marks an entry sold out, optionally until ResumeAt later the same day.
type SoldOutOverride struct {
	Active   bool
	ResumeAt *TimeOfDay
}

// ResolveOpen combines schedule state with overrides.
// Precedence: sold out, then manual pause, then schedule.
func ResolveOpen(scheduleOpen, paused bool, soldOut SoldOutOverride) State {
	switch {
	case soldOut.Active:
		return State{Open: false, Reason: ReasonSoldOut}
	case paused:
		return State{Open: false, Reason: ReasonManuallyPaused}
	case !scheduleOpen:
		return State{Open: false, Reason: ReasonScheduleLocked}
	default:
		return State{Open: true, Reason: ReasonOpen}
	}
}

// CheckExpiry reports whether a timed sold-out override has run out at now.
// It never mutates; clearing is the reconciler's job.
func CheckExpiry(soldOut SoldOutOverride, now TimeOfDay) bool {
	return soldOut.Active && soldOut.ResumeAt != nil && now >= *soldOut.ResumeAt
}

// StateFromCache rebuilds a State from the cached flags written by the reconciler.
// The flags lag operator writes until the next tick: a category unpaused since
// then still has isPaused set and reads as schedule locked. Writers that need
// the cache current run a tick after they write.
func StateFromCache(isPaused, isSoldOut, manualPause bool) State {
	switch {
	case isSoldOut:
		return State{Open: false, Reason: ReasonSoldOut}
	case isPaused && manualPause:
		return State{Open: false, Reason: ReasonManuallyPaused}
	case isPaused:
		return State{Open: false, Reason: ReasonScheduleLocked}
	default:
		return State{Open: true, Reason: ReasonOpen}
	}
}
