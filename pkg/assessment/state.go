package assessment

// State is the per-request lifecycle position. Failed and Done are terminal.
type State string

const (
	StateIdle             State = "idle"
	StateUploading        State = "uploading"
	StatePrompting        State = "prompting"
	StateAwaitingResponse State = "awaiting_response"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Observer is told about every transition of one request. It runs synchronously on the
// request goroutine and must not block.
type Observer func(requestID string, from State, to State)

type tracker struct {
	requestID string
	state     State
	observer  Observer
}

func newTracker(requestID string, observer Observer) *tracker {
	return &tracker{requestID: requestID, state: StateIdle, observer: observer}
}

func (t *tracker) advance(to State) {
	if t.state.Terminal() {
		return
	}
	from := t.state
	t.state = to
	if t.observer != nil {
		t.observer(t.requestID, from, to)
	}
}
