package types

import "time"

// Clock supplies the wall-clock time used for claims, credential freshness
// and suspend detection.
type Clock interface {
	Now() time.Time
}
