package submissions

import (
	"fmt"
	"time"

	"critique-backend/internal/programs"
	"critique-backend/internal/records"
)

const artifactTimeLayout = "20060102_150405"

// ArtifactPath derives the storage key of a critique artifact.
func ArtifactPath(program string, kind records.ContentKind, id string, at time.Time) string {
	ext := "txt"
	if kind == records.ContentVoice {
		ext = "ogg"
	}
	return fmt.Sprintf("%s/%s/%s_%s.%s", programs.Slug(program), kind, at.UTC().Format(artifactTimeLayout), id, ext)
}
