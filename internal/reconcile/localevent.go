package reconcile

// NewWakeClassifier returns a Watcher toEvent callback that wraps a raw
// filesystem notification into a minimal ModificationEvent carrying only
// path, kind, and directory-ness. The Coordinator does not dispatch these
// events directly — resolving a change's remote/DB context correctly
// requires the Auditor's cross-referenced view, not a bare fsnotify
// event — so callers use Watcher.Events() purely as a "something changed,
// audit now" wakeup signal and discard the payload's Context (always
// zero-valued here). This keeps the Watcher's debounce/consolidation
// machinery in the loop (spec §6's EVENT_DEBOUNCE) without duplicating
// the Auditor's path-resolution logic in a second, unsynchronized place.
func NewWakeClassifier() func(rawEvent) (ModificationEvent, error) {
	return func(ev rawEvent) (ModificationEvent, error) {
		et := EventUpdate

		switch ev.kind {
		case rawCreated:
			et = EventCreate
		case rawDeleted:
			et = EventDelete
		case rawMoved:
			et = EventMove
		}

		return ModificationEvent{
			Location:    LocationLocal,
			EventType:   et,
			SrcPath:     ev.srcPath,
			DestPath:    ev.destPath,
			IsDirectory: ev.isDirectory,
		}, nil
	}
}
