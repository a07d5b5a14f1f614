// Package chat contains core concepts of the chat relay.
// No runtime, network, or storage logic should be added here.
package chat

type UserID string

// Identity is issued by the authentication collaborator and never mutated by the core.
type Identity struct {
	ID       UserID
	Username string
}

// ConnectionID identifies one live transport link.
type ConnectionID string
