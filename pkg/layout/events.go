package layout

// EventType classifies a remote change notification.
type EventType string

// Remote change notification types delivered over the push channel.
const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is a typed change notification pushed from the remote store. Before
// and After carry Block or Part values according to Entity; deletes populate
// Before only and inserts After only. Delivery is at-least-once and ordered
// per entity, not across entities.
type Event struct {
	Type   EventType  `json:"type"`
	Entity EntityType `json:"entity"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}

// BlockPayload returns the event's block payload, preferring After.
func (e Event) BlockPayload() (Block, bool) {
	if b, ok := e.After.(Block); ok {
		return b, true
	}
	if b, ok := e.Before.(Block); ok {
		return b, true
	}
	return Block{}, false
}

// PartPayload returns the event's part payload, preferring After.
func (e Event) PartPayload() (Part, bool) {
	if p, ok := e.After.(Part); ok {
		return p, true
	}
	if p, ok := e.Before.(Part); ok {
		return p, true
	}
	return Part{}, false
}
