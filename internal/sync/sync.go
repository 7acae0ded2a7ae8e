// Package sync keeps an in-memory, newest-first view of one user's
// tasks and notifications in step with the hosted platform. Three
// producers write into each view: the initial fetch, optimistic local
// mutations, and push-delivered inserts from the platform's change
// feed. Derived aggregates (unread count, per-status counts, upcoming
// deadlines) are maintained incrementally alongside the collections.
//
// A view belongs to exactly one user session and is discarded when the
// session ends or the user changes. Mutations run to completion one at
// a time, but there is no transaction spanning a fetch and a push
// event: whichever finishes last wins, and a record can appear twice
// when a push insert races the initial fetch. The next Initialize
// resolves both situations.
package sync

import "errors"

// ErrStarted reports that the push feed for a view is already running.
var ErrStarted = errors.New("sync already started")
