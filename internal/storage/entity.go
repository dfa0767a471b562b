package storage

// Kind names a table. Every entity type supplies its own constant.
type Kind string

// Entity is implemented by everything the store persists. An identity of 0
// means the entity has not been saved yet.
type Entity interface {
	Kind() Kind
	EntityID() int64
	SetEntityID(id int64)
	// Clone returns a deep copy that shares no mutable state with the receiver.
	Clone() Entity
}
