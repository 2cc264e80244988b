package converter

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Observer receives conversion events. Methods are called on the engine
// thread while a conversion is in progress and must not call back into the
// converter that emitted them.
type Observer interface {
	// OnBegin reports the number of phases the engine expects to run.
	OnBegin(phaseCount int)
	// OnPhaseChanged reports the 1-based phase number and its description.
	OnPhaseChanged(phase int, description string)
	// OnProgressChanged reports the engine's progress value and text.
	OnProgressChanged(progress int, description string)
	// OnFinished reports the engine's final status.
	OnFinished(success bool)
	// OnError reports one engine error message.
	OnError(msg string)
	// OnWarning reports one engine warning message.
	OnWarning(msg string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Begin           func(phaseCount int)
	PhaseChanged    func(phase int, description string)
	ProgressChanged func(progress int, description string)
	Finished        func(success bool)
	Error           func(msg string)
	Warning         func(msg string)
}

func (f ObserverFuncs) OnBegin(n int) {
	if f.Begin != nil {
		f.Begin(n)
	}
}

func (f ObserverFuncs) OnPhaseChanged(phase int, desc string) {
	if f.PhaseChanged != nil {
		f.PhaseChanged(phase, desc)
	}
}

func (f ObserverFuncs) OnProgressChanged(progress int, desc string) {
	if f.ProgressChanged != nil {
		f.ProgressChanged(progress, desc)
	}
}

func (f ObserverFuncs) OnFinished(success bool) {
	if f.Finished != nil {
		f.Finished(success)
	}
}

func (f ObserverFuncs) OnError(msg string) {
	if f.Error != nil {
		f.Error(msg)
	}
}

func (f ObserverFuncs) OnWarning(msg string) {
	if f.Warning != nil {
		f.Warning(msg)
	}
}

// dispatcher fans events out to subscribers, isolating each one.
type dispatcher struct {
	logger *log.Logger

	mu   sync.Mutex
	next int
	subs []subscription
}

type subscription struct {
	id  int
	obs Observer
}

func newDispatcher(logger *log.Logger) *dispatcher {
	return &dispatcher{logger: logger}
}

func (d *dispatcher) subscribe(o Observer) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	id := d.next
	d.subs = append(d.subs, subscription{id: id, obs: o})

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (d *dispatcher) clear() {
	d.mu.Lock()
	d.subs = nil
	d.mu.Unlock()
}

func (d *dispatcher) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// emit calls fn for every subscriber. A subscriber that panics is logged
// and the remaining subscribers still run.
func (d *dispatcher) emit(event string, fn func(Observer)) {
	d.mu.Lock()
	subs := append([]subscription(nil), d.subs...)
	d.mu.Unlock()

	for _, s := range subs {
		d.call(event, s.obs, fn)
	}
}

func (d *dispatcher) call(event string, o Observer, fn func(Observer)) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler failed", "event", event, "panic", r)
		}
	}()
	fn(o)
}

func (d *dispatcher) begin(n int) {
	d.emit("begin", func(o Observer) { o.OnBegin(n) })
}

func (d *dispatcher) phaseChanged(phase int, desc string) {
	d.emit("phase_changed", func(o Observer) { o.OnPhaseChanged(phase, desc) })
}

func (d *dispatcher) progressChanged(progress int, desc string) {
	d.emit("progress_changed", func(o Observer) { o.OnProgressChanged(progress, desc) })
}

func (d *dispatcher) finished(success bool) {
	d.emit("finished", func(o Observer) { o.OnFinished(success) })
}

func (d *dispatcher) reportError(msg string) {
	d.emit("error", func(o Observer) { o.OnError(msg) })
}

func (d *dispatcher) reportWarning(msg string) {
	d.emit("warning", func(o Observer) { o.OnWarning(msg) })
}
