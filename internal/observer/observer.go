package observer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/nao1215/fieldlink/internal/model"
	"github.com/nao1215/fieldlink/internal/renderer"
)

const (
	// DefaultPageChangeDelay is the wait between a page change and its scan.
	DefaultPageChangeDelay = 100 * time.Millisecond

	// DefaultObserveDelay is the wait between Start and the first mutation
	// that triggers a scan.
	DefaultObserveDelay = 500 * time.Millisecond
)

// decoratorScopes selects the subtrees scanned after a decoration.
var decoratorScopes = cascadia.MustCompile(".user-card, .user-main")

// Mode selects how the observer reacts to document changes.
type Mode int

const (
	// ModePageChange scans after page changes and after mutations.
	ModePageChange Mode = iota

	// ModeDecorators scans only after decorations, and only the decorated
	// user card and user main subtrees. Page changes and plain mutations do
	// not trigger scans.
	ModeDecorators
)

// String returns the name of the mode.
func (m Mode) String() string {
	switch m {
	case ModePageChange:
		return "page-change"
	case ModeDecorators:
		return "decorators"
	default:
		return "unknown"
	}
}

// Trigger identifies what caused a scan.
type Trigger int

const (
	// TriggerPageChange is a delayed scan after Navigate.
	TriggerPageChange Trigger = iota

	// TriggerMutation is a scan after Mutate.
	TriggerMutation

	// TriggerDecoration is a scoped scan after Decorate.
	TriggerDecoration
)

// String returns the name of the trigger.
func (t Trigger) String() string {
	switch t {
	case TriggerPageChange:
		return "page-change"
	case TriggerMutation:
		return "mutation"
	case TriggerDecoration:
		return "decoration"
	default:
		return "unknown"
	}
}

// ScanEvent describes one completed scan.
type ScanEvent struct {
	// Trigger is what caused the scan.
	Trigger Trigger

	// Widget is the decorated widget name for decoration scans.
	Widget string

	// Results are the field results of the scan, in document order.
	Results []model.FieldResult
}

// ScanHook is called on the loop goroutine after every scan.
// It must not call back into the Observer.
type ScanHook func(ScanEvent)

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Observer owns a Page and runs the renderer over it in response to page
// changes, mutations, and decorations.
type Observer struct {
	renderer *renderer.Renderer
	page     *Page

	mode            Mode
	pageChangeDelay time.Duration
	observeDelay    time.Duration
	hook            ScanHook
	logger          *slog.Logger

	mu       sync.Mutex
	state    state
	cancel   context.CancelFunc
	requests chan func()
	done     chan struct{}

	// Owned by the loop goroutine. timers holds pending timers only.
	observing bool
	timers    map[uint64]*time.Timer
	nextTimer uint64
}

// Option configures an Observer.
type Option func(*Observer)

// WithMode sets the observer mode. The default is ModePageChange.
func WithMode(mode Mode) Option {
	return func(o *Observer) {
		o.mode = mode
	}
}

// WithPageChangeDelay sets the wait between Navigate and its scan.
// Negative values are ignored.
func WithPageChangeDelay(d time.Duration) Option {
	return func(o *Observer) {
		if d >= 0 {
			o.pageChangeDelay = d
		}
	}
}

// WithObserveDelay sets the wait between Start and mutation observing.
// Negative values are ignored.
func WithObserveDelay(d time.Duration) Option {
	return func(o *Observer) {
		if d >= 0 {
			o.observeDelay = d
		}
	}
}

// WithScanHook sets a function called after every scan.
func WithScanHook(hook ScanHook) Option {
	return func(o *Observer) {
		o.hook = hook
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// New creates an Observer for page. A nil page starts as an empty document.
// The observer does nothing until Start is called.
func New(r *renderer.Renderer, page *Page, opts ...Option) *Observer {
	if page == nil {
		page = NewPage(nil)
	}

	o := &Observer{
		renderer:        r,
		page:            page,
		mode:            ModePageChange,
		pageChangeDelay: DefaultPageChangeDelay,
		observeDelay:    DefaultObserveDelay,
		requests:        make(chan func()),
		done:            make(chan struct{}),
		timers:          make(map[uint64]*time.Timer),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// Start launches the loop goroutine. The loop ends when Stop is called or
// ctx is cancelled.
func (o *Observer) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.state = stateRunning

	go o.loop(ctx)

	o.logger.Debug("observer started",
		"mode", o.mode.String(),
		"page_change_delay", o.pageChangeDelay,
		"observe_delay", o.observeDelay,
	)
	return nil
}

// Stop cancels pending timers, ends the loop, and waits for it to exit.
// Stop is safe to call more than once and before Start.
func (o *Observer) Stop() {
	o.mu.Lock()
	prev := o.state
	o.state = stateStopped
	cancel := o.cancel
	o.mu.Unlock()

	if prev != stateRunning {
		return
	}

	cancel()
	<-o.done
	o.logger.Debug("observer stopped")
}

// Done returns a channel that is closed when the loop has exited.
func (o *Observer) Done() <-chan struct{} {
	return o.done
}

// Navigate replaces the document. In ModePageChange it also schedules a
// scan after the page change delay. A nil root navigates to an empty
// document.
func (o *Observer) Navigate(root *html.Node) error {
	return o.do(func() {
		o.page.Replace(root)
		if o.mode != ModePageChange {
			return
		}
		o.after(o.pageChangeDelay, func() {
			o.scan(TriggerPageChange, "", o.page.Root())
		})
	})
}

// Mutate applies fn to the document root on the loop goroutine. In
// ModePageChange the whole document is scanned afterwards, once observing
// has begun.
func (o *Observer) Mutate(fn func(root *html.Node)) error {
	return o.do(func() {
		fn(o.page.Root())
		if o.mode == ModePageChange && o.observing {
			o.scan(TriggerMutation, "", o.page.Root())
		}
	})
}

// Decorate applies fn to the document root on the loop goroutine. fn returns
// the node it decorated; nil means the whole document. In ModeDecorators the
// .user-card and .user-main subtrees of that node are scanned. In
// ModePageChange a decoration is handled like a mutation.
func (o *Observer) Decorate(widget string, fn func(root *html.Node) *html.Node) error {
	return o.do(func() {
		node := fn(o.page.Root())
		if node == nil {
			node = o.page.Root()
		}

		if o.mode != ModeDecorators {
			if o.observing {
				o.scan(TriggerMutation, "", o.page.Root())
			}
			return
		}

		var results []model.FieldResult
		for _, scope := range decoratedScopes(node) {
			results = append(results, o.renderer.RenderFieldLinks(scope)...)
		}
		o.emit(ScanEvent{Trigger: TriggerDecoration, Widget: widget, Results: results})
	})
}

// Observing reports whether mutations trigger scans yet.
func (o *Observer) Observing() (bool, error) {
	var observing bool
	err := o.do(func() {
		observing = o.observing
	})
	return observing, err
}

// Snapshot writes the current document to w.
func (o *Observer) Snapshot(w io.Writer) error {
	var renderErr error
	if err := o.do(func() {
		renderErr = o.page.Render(w)
	}); err != nil {
		return err
	}
	return renderErr
}

// do runs fn on the loop goroutine and waits for it to finish.
func (o *Observer) do(fn func()) error {
	o.mu.Lock()
	st := o.state
	o.mu.Unlock()

	switch st {
	case stateIdle:
		return ErrNotStarted
	case stateStopped:
		return ErrStopped
	}

	finished := make(chan struct{})
	select {
	case o.requests <- func() {
		defer close(finished)
		fn()
	}:
	case <-o.done:
		return ErrStopped
	}

	<-finished
	return nil
}

// loop serializes all access to the page.
func (o *Observer) loop(ctx context.Context) {
	defer close(o.done)
	defer o.stopTimers()

	if o.mode == ModePageChange {
		o.after(o.observeDelay, func() {
			o.observing = true
			o.logger.Debug("observing mutations")
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-o.requests:
			fn()
		}
	}
}

// after schedules fn on the loop goroutine once d has elapsed.
// It must be called from the loop goroutine.
func (o *Observer) after(d time.Duration, fn func()) {
	id := o.nextTimer
	o.nextTimer++

	fire := func() {
		delete(o.timers, id)
		fn()
	}
	o.timers[id] = time.AfterFunc(d, func() {
		select {
		case o.requests <- fire:
		case <-o.done:
		}
	})
}

func (o *Observer) stopTimers() {
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
}

// scan renders every field below scope and reports the results.
func (o *Observer) scan(trigger Trigger, widget string, scope *html.Node) {
	results := o.renderer.RenderFieldLinks(scope)
	o.emit(ScanEvent{Trigger: trigger, Widget: widget, Results: results})
}

func (o *Observer) emit(ev ScanEvent) {
	rewritten := 0
	for _, r := range ev.Results {
		if r.Outcome.Rewritten() {
			rewritten++
		}
	}
	o.logger.Debug("scan complete",
		"trigger", ev.Trigger.String(),
		"widget", ev.Widget,
		"fields", len(ev.Results),
		"rewritten", rewritten,
	)

	if o.hook != nil {
		o.hook(ev)
	}
}

// decoratedScopes returns the outermost .user-card and .user-main elements
// at or below node.
func decoratedScopes(node *html.Node) []*html.Node {
	sel := goquery.NewDocumentFromNode(node).Selection
	matched := sel.FilterMatcher(decoratorScopes).AddSelection(sel.FindMatcher(decoratorScopes))

	seen := make(map[*html.Node]bool, matched.Length())
	var scopes []*html.Node
	for _, n := range matched.Nodes {
		seen[n] = true
		if hasAncestorIn(n, seen) {
			continue
		}
		scopes = append(scopes, n)
	}
	return scopes
}

func hasAncestorIn(n *html.Node, set map[*html.Node]bool) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if set[p] {
			return true
		}
	}
	return false
}
