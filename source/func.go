package source

import (
	"context"

	"github.com/arloliu/credshare/types"
)

// Func adapts an ordinary function to types.CredentialSource.
type Func func(ctx context.Context) (types.Issued, error)

var _ types.CredentialSource = Func(nil)

// FetchCredential calls f.
func (f Func) FetchCredential(ctx context.Context) (types.Issued, error) {
	return f(ctx)
}
