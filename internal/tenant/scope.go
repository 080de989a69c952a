// Package tenant defines the tenant scope threaded through every storage
// and retrieval call. Company is the tenant boundary; nothing crosses it.
package tenant

import (
	"errors"
	"fmt"
)

// ErrInvalidScope indicates a scope with a missing company or chatbot.
var ErrInvalidScope = errors.New("invalid tenant scope")

// Scope identifies the (company, chatbot) pair an operation acts on.
// It is a mandatory parameter, never optional: every document read and
// write is filtered by both IDs.
type Scope struct {
	CompanyID int64
	ChatbotID int64
}

// Validate rejects zero-valued scopes before they reach a query.
func (s Scope) Validate() error {
	if s.CompanyID <= 0 {
		return fmt.Errorf("%w: company id %d", ErrInvalidScope, s.CompanyID)
	}
	if s.ChatbotID <= 0 {
		return fmt.Errorf("%w: chatbot id %d", ErrInvalidScope, s.ChatbotID)
	}
	return nil
}

func (s Scope) String() string {
	return fmt.Sprintf("company=%d chatbot=%d", s.CompanyID, s.ChatbotID)
}
