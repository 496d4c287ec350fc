// Package hooks invokes user supplied lifecycle callbacks.
package hooks

import (
	"context"

	"github.com/arloliu/credshare/types"
)

// NewNop returns hooks whose callbacks all do nothing.
//
// This is the default used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
func NewNop() types.Hooks {
	return types.Hooks{
		OnRoleChanged:       func(context.Context, types.Role, types.Role) error { return nil },
		OnCredentialChanged: func(context.Context, types.Credential) error { return nil },
		OnError:             func(context.Context, error) error { return nil },
	}
}

// Fill returns a copy of h with every nil callback replaced by a no-op.
// A nil h yields NewNop().
func Fill(h *types.Hooks) types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}

	if h.OnRoleChanged != nil {
		out.OnRoleChanged = h.OnRoleChanged
	}
	if h.OnCredentialChanged != nil {
		out.OnCredentialChanged = h.OnCredentialChanged
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return out
}
