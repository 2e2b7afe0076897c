package ports

import "github.com/layer-3/walletgate/core"

// Tokenizer converts between domain objects and tokens
type Tokenizer interface {
	// Binding token operations
	BindingToToken(binding *core.Binding) (string, error)
	TokenToBinding(token string) (*core.Binding, error)

	// Session token operations
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
