// Package addon holds the proxy addons of false2true.
package addon

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/false2true/false2true/proxy"
	"github.com/false2true/false2true/rewrite"
)

const (
	// HeaderModified marks a rewritten response.
	HeaderModified = "X-False2True-Modified"
	// HeaderChanges carries the number of "false" occurrences found in the
	// original body.
	HeaderChanges = "X-False2True-Changes"
)

// Inspection reports what False2True did with one response.
type Inspection struct {
	FlowID      uuid.UUID
	Method      string
	URL         string
	ContentType string
	Status      rewrite.Status
	// Streamed is set for responses too large to buffer; Status is then
	// meaningless.
	Streamed   bool
	FalseCount int
	// Total is the number of modified responses so far, this one included.
	Total int64
}

// Result returns the label of the inspection: "streamed" or the status.
func (i Inspection) Result() string {
	if i.Streamed {
		return "streamed"
	}
	return i.Status.String()
}

// Observer is told about every response False2True inspects. Observers are
// called from the proxy's request goroutines.
type Observer interface {
	Inspected(Inspection)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Inspection)

func (fn ObserverFunc) Inspected(i Inspection) { fn(i) }

// False2True rewrites "false" to "true" in the textual responses passing
// through the proxy.
type False2True struct {
	proxy.BaseAddon

	engine  *rewrite.Engine
	counter *rewrite.Counter
	logger  *slog.Logger

	mu        sync.RWMutex
	observers []Observer
}

// NewFalse2True creates the addon. Modified responses are tallied in
// counter, which may be shared with other components; a nil counter gets a
// private one.
func NewFalse2True(engine *rewrite.Engine, counter *rewrite.Counter) *False2True {
	if engine == nil {
		engine = rewrite.NewEngine(nil)
	}
	if counter == nil {
		counter = rewrite.NewCounter()
	}
	return &False2True{
		engine:  engine,
		counter: counter,
		logger:  slog.Default().With("in", "addon.False2True"),
	}
}

// AddObserver registers o for every later inspection.
func (a *False2True) AddObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

func (a *False2True) notify(i Inspection) {
	a.mu.RLock()
	observers := a.observers
	a.mu.RUnlock()
	for _, o := range observers {
		o.Inspected(i)
	}
}

// Requestheaders watches the flow so that streamed responses, which never
// reach Response, are reported too.
func (a *False2True) Requestheaders(f *proxy.Flow) {
	if f.Request.Method == http.MethodConnect {
		return
	}
	go func() {
		<-f.Done()
		if f.Stream && f.Response != nil {
			a.notify(a.inspection(f, rewrite.StatusIneligible, true))
		}
	}()
}

func (a *False2True) Response(f *proxy.Flow) {
	if f.Response == nil || f.Stream {
		return
	}

	contentType := f.Response.Header.Get("Content-Type")
	if !rewrite.IsEligible(contentType) {
		a.notify(a.inspection(f, rewrite.StatusIneligible, false))
		return
	}

	body, err := f.Response.DecodedBody()
	if err != nil {
		a.logger.Debug("cannot decode content-encoding", "url", f.Request.URL.String(), "error", err)
		a.notify(a.inspection(f, rewrite.StatusUndecodable, false))
		return
	}

	out := a.engine.Process(body, contentType)
	i := a.inspection(f, out.Status, false)
	i.FalseCount = out.FalseCount
	if !out.Changed {
		a.notify(i)
		return
	}

	f.Response.ReplaceBody(out.Body)
	f.Response.Header.Set(HeaderModified, "true")
	f.Response.Header.Set(HeaderChanges, strconv.Itoa(out.FalseCount))

	i.Total = a.counter.Inc()
	a.logger.Info("modified response", "count", i.Total, "url", i.URL, "falseCount", out.FalseCount)
	a.notify(i)
}

func (a *False2True) inspection(f *proxy.Flow, status rewrite.Status, streamed bool) Inspection {
	i := Inspection{
		FlowID:   f.ID,
		Method:   f.Request.Method,
		Status:   status,
		Streamed: streamed,
		Total:    a.counter.Load(),
	}
	if f.Request.URL != nil {
		i.URL = f.Request.URL.String()
	}
	if f.Response != nil {
		i.ContentType = f.Response.Header.Get("Content-Type")
	}
	return i
}

// ModifiedCount returns the number of responses modified so far.
func (a *False2True) ModifiedCount() int64 {
	return a.counter.Load()
}

// Done logs the final tally. It is called once when the proxy shuts down.
func (a *False2True) Done() {
	a.logger.Info("false2true addon finished", "modified", a.counter.Load())
}
