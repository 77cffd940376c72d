// Package student holds the student registry domain: the Student type, the
// sentinel errors the HTTP layer maps to status codes, and the Service that
// coordinates the repository, the read-through cache and lifecycle events.
package student
