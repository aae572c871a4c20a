package types

// Event is the payload the pool engine emits on a lifecycle transition. The
// type names the transition and the attributes carry the pool id, identities
// and amounts as strings for off-platform indexers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
