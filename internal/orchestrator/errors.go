package orchestrator

import "github.com/rotisserie/eris"

// Fatal conditions that abort the pipeline outright. Every other failure —
// a single provider erroring, geocoding failing, enrichment failing,
// cross-validation failing — is absorbed and reflected in metadata instead.
var (
	// ErrInputInvalid means the request carries neither coordinates nor an
	// address. Surfaced at the request boundary; never reaches a stage.
	ErrInputInvalid = eris.New("orchestrator: request has neither coordinates nor address")

	// ErrExhaustedProviders means every LLM provider failed or returned no
	// recommendations in stage 3.
	ErrExhaustedProviders = eris.New("orchestrator: no providers produced recommendations")

	// ErrCancelled means the request's cancellation token tripped or its
	// deadline expired while a stage was in flight.
	ErrCancelled = eris.New("orchestrator: request cancelled")
)
