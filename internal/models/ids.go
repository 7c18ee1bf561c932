package models

// ChatID identifies one conversation on this node.
type ChatID string

// UserID identifies a platform user.
type UserID string

// NodeID is the logical address of a destination node. It is resolved to a
// network endpoint by the NodeDirectory, never interpreted by this core.
type NodeID string

// EventIndex is the dense, monotonic position of an event within its log.
type EventIndex uint64

// MessageID is the stable identifier of a message, distinct from its
// positional EventIndex. Generated from a node-scoped snowflake.
type MessageID string

func (c ChatID) String() string    { return string(c) }
func (u UserID) String() string    { return string(u) }
func (n NodeID) String() string    { return string(n) }
func (m MessageID) String() string { return string(m) }

// UserNode is the logical destination for a user's personal node.
func UserNode(user UserID) NodeID {
	return NodeID("user:" + string(user))
}

// IndexNode is the logical destination of a platform index node.
func IndexNode(name string) NodeID {
	return NodeID("index:" + name)
}
