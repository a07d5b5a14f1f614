//go:build tools

// Package chat_relay pins the code generators run by go generate, mockgen for the mocks/ package.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
