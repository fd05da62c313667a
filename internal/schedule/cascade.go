package schedule

// LockKind is the single lock reason shown for a menu item.
type LockKind string

const (
	Unlocked       LockKind = "unlocked"
	ScheduleLocked LockKind = "schedule_locked"
	ManuallyPaused LockKind = "manually_paused"
)

// ItemLock is the cascade result for one menu item.
type ItemLock struct {
	Locked             bool     `json:"locked"`
	Kind               LockKind `json:"reason"`
	BlockingCategories []string `json:"blocking_categories,omitempty"`
}

// CategoryStates maps category name to its resolved state.
// Categories missing from the map count as open.
type CategoryStates map[string]State

func (cs CategoryStates) open(name string) bool {
	st, ok := cs[name]
	return !ok || st.Open
}

// HasActiveCategory reports whether any of the item's categories is open.
func HasActiveCategory(categories []string, states CategoryStates) bool {
	for _, c := range categories {
		if states.open(c) {
			return true
		}
	}
	return false
}

// IsFullyUnavailable reports whether every one of the item's categories is closed.
func IsFullyUnavailable(categories []string, states CategoryStates) bool {
	if len(categories) == 0 {
		return false
	}
	return !HasActiveCategory(categories, states)
}

// Classify derives an item's lock from its categories using union semantics:
// one open category makes the item available. Schedule locks take precedence
// over manual pauses in the reported reason.
func Classify(categories []string, states CategoryStates) ItemLock {
	if !IsFullyUnavailable(categories, states) {
		return ItemLock{Kind: Unlocked}
	}

	var scheduled, manual []string
	for _, c := range categories {
		switch states[c].Reason {
		case ReasonScheduleLocked:
			scheduled = append(scheduled, c)
		case ReasonManuallyPaused, ReasonSoldOut:
			manual = append(manual, c)
		}
	}

	if len(scheduled) > 0 {
		return ItemLock{Locked: true, Kind: ScheduleLocked, BlockingCategories: scheduled}
	}
	if len(manual) > 0 {
		return ItemLock{Locked: true, Kind: ManuallyPaused, BlockingCategories: manual}
	}
	return ItemLock{Kind: Unlocked}
}
