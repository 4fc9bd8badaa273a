// Package metrics holds the instrumentation interfaces the core packages
// report through. Backends live in adapters (see adapters/prometheus).
package metrics

// Timer measures one operation. Call ObserveDuration when it completes:
//
//	defer m.StoreAppendDuration("question_pool").ObserveDuration()
type Timer interface {
	ObserveDuration()
}

// TimerFunc adapts a plain function to Timer.
type TimerFunc func()

func (f TimerFunc) ObserveDuration() { f() }

// NopTimer returns a Timer that records nothing.
func NopTimer() Timer { return TimerFunc(func() {}) }
