/*
Package types defines the core data structures of the relay's domain model.

These are the entities described in the data model: Listener (a subscribed
remote server), Actor (a cached remote actor document with its public key),
Node (cached NodeInfo presentation metadata), Contact (per-host delivery
health), Job (a durable unit of delivery/maintenance work), Setting, and
Media (the avatar proxy mapping).

# Ownership

The State Repository (pkg/repo) exclusively owns Listener, Actor, Node,
Contact, Setting, and Media records. The Job Engine (pkg/jobs) exclusively
owns Job records. Other packages hold short-lived value copies only -
nothing here is a live reference into storage.

# Cross-references

Actor.ListenerRef and Node.ListenerRef point at a Listener by its ActorIRI,
not by pointer: lifetime is controlled by the repository, never by
reference counting.
*/
package types
