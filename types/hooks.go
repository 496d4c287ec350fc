package types

import "context"

// Hooks defines callbacks for Coordinator lifecycle events.
//
// All hooks are optional and called asynchronously on one background worker
// so they never block the event loop. They run one at a time in the order
// the events happened; Stop waits for queued hooks and none run after it
// returns. Hooks receive the coordinator's lifecycle context which is
// cancelled during shutdown.
//
// Hook errors are logged but don't fail coordinator operations.
//
// Example:
//
//	hooks := &credshare.Hooks{
//	    OnCredentialChanged: func(ctx context.Context, cred credshare.Credential) error {
//	        if cred.IsZero() {
//	            return ui.ClearEmbed(ctx)
//	        }
//	        return ui.SetEmbedURL(ctx, cred.Value)
//	    },
//	}
type Hooks struct {
	// OnRoleChanged is called when the peer's role transitions.
	OnRoleChanged func(ctx context.Context, from, to Role) error

	// OnCredentialChanged is called when the cached credential is replaced
	// or cleared. A cleared cache is reported as a zero Credential.
	OnCredentialChanged func(ctx context.Context, cred Credential) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
