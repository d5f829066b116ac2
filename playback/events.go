package playback

// Events carries the host's callbacks. All fields are optional. Callbacks
// fire from pipeline goroutines; hosts must redispatch to their own
// execution context before touching UI state.
type Events struct {
	// Started fires once playback threads are running after Open.
	Started func()
	// Ended fires exactly once when the source is exhausted and every
	// queue has drained.
	Ended func()
	// Stopped fires when Close tears the session down.
	Stopped func()

	Paused  func()
	Resumed func()

	// Seek reports the new position and the signed offset from the old one.
	Seek func(timeMs, offsetMs int64)
	// SpeedChanged reports the new playback rate.
	SpeedChanged func(factor float64)

	// Error reports open-time and thread-fatal failures. Per-packet decode
	// errors are absorbed by the pipeline and never reach this callback.
	Error func(err *EngineError)

	// AVStarted fires when the first decoders are open and stream info is
	// available.
	AVStarted func()
	// AVStreamsChanged fires after a mid-playback stream switch.
	AVStreamsChanged func()
}

func (e *Events) fireStarted() {
	if e != nil && e.Started != nil {
		e.Started()
	}
}

func (e *Events) fireEnded() {
	if e != nil && e.Ended != nil {
		e.Ended()
	}
}

func (e *Events) fireStopped() {
	if e != nil && e.Stopped != nil {
		e.Stopped()
	}
}

func (e *Events) firePaused() {
	if e != nil && e.Paused != nil {
		e.Paused()
	}
}

func (e *Events) fireResumed() {
	if e != nil && e.Resumed != nil {
		e.Resumed()
	}
}

func (e *Events) fireSeek(timeMs, offsetMs int64) {
	if e != nil && e.Seek != nil {
		e.Seek(timeMs, offsetMs)
	}
}

func (e *Events) fireSpeedChanged(factor float64) {
	if e != nil && e.SpeedChanged != nil {
		e.SpeedChanged(factor)
	}
}

func (e *Events) fireError(err *EngineError) {
	if e != nil && e.Error != nil {
		e.Error(err)
	}
}

func (e *Events) fireAVStarted() {
	if e != nil && e.AVStarted != nil {
		e.AVStarted()
	}
}

func (e *Events) fireAVStreamsChanged() {
	if e != nil && e.AVStreamsChanged != nil {
		e.AVStreamsChanged()
	}
}
