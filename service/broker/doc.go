// Package broker correlates completion messages posted by worker slots back
// to the caller's outstanding handle.  Resolution is idempotent per task id:
// whichever of resolve/reject/timeout/cancel lands first wins, and the id is
// marked stale so a late message from a respawned slot is dropped instead of
// double-resolving.
package broker
