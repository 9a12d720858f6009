// Package notifications delivers user-facing job updates back to the chat
// that requested the work. Each job keeps a single status message that is
// edited in place as the pipeline advances; edits that fail fall back to a
// fresh message. Failure notices go through services.UserMessage so internal
// detail never reaches the chat.
package notifications
