// Package observer wraps database notifications in start/stop objects with
// an explicit lifecycle: Idle, then Observing, then Stopped for good.
package observer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fulldump/liverepo/database"
)

type State int32

const (
	Idle State = iota
	Observing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Observing:
		return "observing"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

type metricsObserver struct {
	once   sync.Once
	active *prometheus.GaugeVec
}

var obsMetrics metricsObserver

func (m *metricsObserver) init() {
	m.once.Do(func() {
		m.active = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "liverepo_observers_active", Help: "Observers currently registered"}, []string{"kind"})
		prometheus.MustRegister(m.active)
	})
}

// lifecycle holds the state shared by both observer kinds. The state and the
// token are only changed together under mutex, so a Stop that wins the race
// against Start leaves nothing registered.
type lifecycle struct {
	kind    string
	mutex   sync.Mutex
	state   State
	token   *database.Token
	onClose func(err error)
}

// OnClose sets f to be called with database.ErrClosed when the observed
// database closes while observing. The observer is Stopped by then. Set it
// before Start.
func (l *lifecycle) OnClose(f func(err error)) {
	l.onClose = f
}

func (l *lifecycle) State() State {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.state
}

func (l *lifecycle) start(register func() (*database.Token, error)) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.state != Idle {
		return nil
	}

	token, err := register()
	if err != nil {
		return err
	}

	obsMetrics.init()
	obsMetrics.active.WithLabelValues(l.kind).Inc()
	l.token = token
	l.state = Observing
	return nil
}

// Stop ends observation. It is idempotent and final.
func (l *lifecycle) Stop() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.state == Stopped {
		return
	}
	if l.token != nil {
		l.token.Invalidate()
		l.token = nil
		obsMetrics.active.WithLabelValues(l.kind).Dec()
	}
	l.state = Stopped
}

// closed handles the final change of a closing database.
func (l *lifecycle) closed() {
	l.mutex.Lock()
	if l.state != Observing {
		l.mutex.Unlock()
		return
	}
	l.token = nil
	l.state = Stopped
	obsMetrics.active.WithLabelValues(l.kind).Dec()
	l.mutex.Unlock()

	if l.onClose != nil {
		l.onClose(database.ErrClosed)
	}
}

func (l *lifecycle) stopped() bool {
	return l.State() == Stopped
}

// Collection reports the whole result set: once when observation starts,
// then after every change.
type Collection struct {
	lifecycle
	onChange func(results *database.Results)
}

func NewCollection(onChange func(results *database.Results)) *Collection {
	return &Collection{
		lifecycle: lifecycle{kind: "collection"},
		onChange:  onChange,
	}
}

// Start subscribes to results. It must run on the writer that delivers the
// database notifications.
func (o *Collection) Start(results *database.Results) error {
	return o.start(func() (*database.Token, error) {
		return results.Observe(func(change database.ResultsChange) {
			if change.Kind == database.Closed {
				o.closed()
				return
			}
			if o.stopped() {
				return
			}
			o.onChange(change.Results)
		})
	})
}

// Object reports a single record: its live value after every change, and
// ok=false once when it is deleted.
type Object struct {
	lifecycle
	onChange func(object any, ok bool)
}

func NewObject(onChange func(object any, ok bool)) *Object {
	return &Object{
		lifecycle: lifecycle{kind: "object"},
		onChange:  onChange,
	}
}

func (o *Object) Start(handle *database.ObjectHandle) error {
	return o.start(func() (*database.Token, error) {
		return handle.Observe(func(change database.ObjectChange) {
			if change.Kind == database.Closed {
				o.closed()
				return
			}
			if o.stopped() {
				return
			}
			switch change.Kind {
			case database.Update:
				o.onChange(change.Object, true)
			case database.Deleted:
				o.onChange(nil, false)
			}
		})
	})
}
