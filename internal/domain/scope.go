package domain

// Scope selects which cards a session draws from: everything, or a single
// source (one imported book/deck).
type Scope struct {
	SourceID *int64 // nil means all cards
}

// AllCards is the unrestricted scope.
func AllCards() Scope {
	return Scope{}
}

// SourceScope restricts to cards from one source.
func SourceScope(id int64) Scope {
	return Scope{SourceID: &id}
}

// StageCounts summarizes a scope for display.
type StageCounts struct {
	New      int
	Learning int
	Due      int
}
