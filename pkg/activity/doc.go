/*
Package activity parses and builds ActivityStreams 2 documents.

Parsing is tolerant: Activity only models the fields this relay acts on
(type, id, actor, object), everything else is ignored rather than
rejected. "actor" and "object" each accept either a bare IRI string or an
embedded object with its own "id" (spec.md §9: "parsing is best-effort and
tolerant of unknown fields").

Kind is a closed set of the types the Inbox Handler classifies on; any
other AS2 type parses fine and is treated as "ignore" by callers that
switch on Kind. VerbatimKinds names the subset (Delete/Update/Add/Remove)
relayed unmodified rather than rebuilt from a template.

templates.go builds the handful of activities the relay itself originates:
Accept/Reject wrapping an inbound Follow, the relay's own Follow back to a
new listener, Undo of that Follow, and the Announce wrapper used for
fan-out.
*/
package activity
