// Package app runs the background side of scoring: the worker that consumes
// follow-up tasks after their transaction commits and the ticker that drives
// timed shortlist elimination.
package app
