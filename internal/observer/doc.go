// Package observer drives the field renderer from page lifecycle events.
//
// A browser runs DOM updates, timers, and mutation callbacks on a single
// thread. The Observer reproduces that model with one loop goroutine that
// owns the Page: every read or write of the document tree, including the
// renderer's processed marker, happens on that goroutine.
//
// # Triggers
//
//   - Navigate replaces the document and, in ModePageChange, schedules one
//     scan after the page change delay (100ms by default).
//   - Mutate applies a change to the document. Once the observe delay has
//     elapsed after Start (500ms by default), every mutation is followed by
//     a scan of the whole document. Mutations applied earlier are not
//     scanned on their own.
//   - Decorate, in ModeDecorators, applies a change and scans only the
//     .user-card and .user-main subtrees of the decorated node. This is the
//     only trigger in ModeDecorators.
//
// Timers are forgotten once they fire, so a long-lived observer keeps no
// state per navigation.
//
// # Lifecycle
//
//	obs := observer.New(r, observer.NewPage(nil))
//	if err := obs.Start(ctx); err != nil {
//	    return err
//	}
//	defer obs.Stop()
//
// Stop cancels pending timers and ends the loop. A scan that is already
// running completes. An observer cannot be restarted after Stop.
package observer
