package submissions

import (
	"errors"
	"fmt"
)

// ErrArtifactWrite is returned when the artifact store rejects a write. No metadata is
// recorded in that case.
var ErrArtifactWrite = errors.New("artifact write failed")

// ErrUnsupportedFlow is returned for completions the pipeline does not know how to record.
var ErrUnsupportedFlow = errors.New("unsupported flow")

// OrphanedArtifactError reports an artifact that was stored but whose metadata record
// could not be written. The artifact is left in place.
type OrphanedArtifactError struct {
	Path string
	User string
	Err  error
}

func (e *OrphanedArtifactError) Error() string {
	return fmt.Sprintf("orphaned artifact %s for user %s: %v", e.Path, e.User, e.Err)
}

func (e *OrphanedArtifactError) Unwrap() error {
	return e.Err
}
