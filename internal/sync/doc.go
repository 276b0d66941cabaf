// Package sync keeps the local database and the remote document store
// convergent while treating the local database as the source of truth
// for reads.
//
// Two halves cooperate:
//
//   - Listener (down-sync) subscribes to the remote collections for
//     the active household and folds incoming changes into the local
//     database using last-write-wins on the lastUpdated stamp. Remote
//     removals always delete locally.
//
//   - Pusher (up-sync) scans for records whose dirty flag is set,
//     writes each one to the remote store, and clears the flag on
//     success. Pushes are debounced behind local write activity and
//     re-triggered when the network comes back.
//
// Both halves log and continue on per-record failures so one bad
// document cannot stall the rest of the sync.
package sync
