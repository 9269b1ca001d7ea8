// Package optimistic provides the shared three-step mutation pattern used by
// the conversation ledger and the notification feed: snapshot prior state,
// apply the optimistic value, and restore the snapshot when the confirming
// request fails.
//
// Whether a failed confirmation reverts is a per-field policy decided by the
// caller. Pin, mute, and notification read flags revert; conversation read
// state deliberately does not.
package optimistic

import "context"

// Mutation captures one reversible local state change. Apply and Revert must
// perform their own locking; Run never holds caller locks across the
// confirming request.
type Mutation struct {
	Apply  func()
	Revert func()
}

// Run applies the mutation, then invokes confirm. When confirm fails and
// revertOnFailure is set, the prior state is restored via Revert. The confirm
// error is returned unchanged so the caller can surface it.
func Run(ctx context.Context, m Mutation, revertOnFailure bool, confirm func(context.Context) error) error {
	if m.Apply != nil {
		m.Apply()
	}
	if confirm == nil {
		return nil
	}
	if err := confirm(ctx); err != nil {
		if revertOnFailure && m.Revert != nil {
			m.Revert()
		}
		return err
	}
	return nil
}
