package usecase

import "fmt"

// State is a pipeline driver state. Per-highlight states repeat for every
// selected highlight.
type State string

const (
	StateIdle               State = "Idle"
	StateSourceResolved     State = "SourceResolved"
	StateAudioExtracted     State = "AudioExtracted"
	StateTranscribed        State = "Transcribed"
	StateHighlightsSelected State = "HighlightsSelected"
	StateCropped            State = "Cropped"
	StateReframed           State = "Reframed"
	StateSubtitled          State = "Subtitled"
	StateRemuxed            State = "Remuxed"
	StateDone               State = "Done"
	StateError              State = "Error"
)

// Step names a per-highlight rendering step.
type Step string

const (
	StepCrop     Step = "crop"
	StepReframe  Step = "reframe"
	StepSubtitle Step = "subtitle"
	StepRemux    Step = "remux"
)

// StepError is a failure confined to one highlight. The run continues with
// the next highlight.
type StepError struct {
	Step  Step
	Index int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("highlight %d: %s: %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Event reports progress. Index and Total are set for per-highlight states.
type Event struct {
	State   State
	Index   int
	Total   int
	Message string
}
