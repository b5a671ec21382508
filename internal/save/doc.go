// Package save turns a stream of content updates for one document into a
// minimal, ordered series of store writes.
//
// A Coordinator owns one pending buffer and two timers. Every Update
// overwrites the buffer, re-arms the auto-save debounce and asks the status
// throttle to announce that the document is unsaved. When the document has
// been quiet for the debounce interval the coordinator writes whatever the
// buffer holds at that moment. SaveNow supersedes the debounce and writes
// immediately; Dispose silences both timers and flushes what is left.
//
// At most one write per document is in flight. A write requested while one
// is running is folded into a single follow-up that re-reads the buffer once
// the running write completes.
//
// Status events are delivered to a status.Sink. Saving, Saved and Error are
// tied to real writes and always delivered; Unsaved goes through the
// throttle and is held back while the document is in the Error state so the
// failure stays visible until the next write attempt.
package save

// TracerName is the instrumentation name for coordinator write spans
const TracerName = "github.com/grain-editor/grain-shell/save"
