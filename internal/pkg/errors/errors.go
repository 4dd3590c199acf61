package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal")

	// ErrEmbeddingUnavailable: the embedding provider produced no vector for
	// the input. Search cannot rank semantically; capture still proceeds.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrIndexUnavailable: the vector index collaborator is not configured or
	// not reachable. The search orchestrator falls back to the legacy scan.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrEnrichmentFailed: a third-party fetch (oembed/transcript/webpage)
	// failed or timed out. Capture continues with the raw URL.
	ErrEnrichmentFailed = errors.New("enrichment failed")

	ErrAIUnavailable = errors.New("ai unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsIndexUnavailable(err error) bool {
	return errors.Is(err, ErrIndexUnavailable)
}
