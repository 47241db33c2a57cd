package narration

import "errors"

// Common errors for the narration system.
var (
	// ErrInterrupted marks an utterance that ended because we cancelled
	// it. It is the one engine error the controller ignores: the
	// cancelling caller is already tearing the session down.
	ErrInterrupted = errors.New("utterance interrupted by cancellation")

	// ErrEngineUnavailable indicates the selected engine cannot run on
	// this system (missing binary, no audio device).
	ErrEngineUnavailable = errors.New("speech engine is not available")

	// ErrNoVoices indicates the engine enumerated zero voices.
	ErrNoVoices = errors.New("speech engine reports no voices")

	// ErrUnknownEngine indicates an engine name with no registered
	// implementation.
	ErrUnknownEngine = errors.New("unknown speech engine")

	// ErrInvalidConfig indicates configuration that failed validation.
	ErrInvalidConfig = errors.New("invalid narration configuration")
)

// IsCancellation reports whether an engine error is the intentional
// cancellation signal rather than a genuine failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrInterrupted)
}
