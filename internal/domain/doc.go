// Package domain defines the scoring entities and the ports the engines
// depend on.
//
// Files are concept-oriented (event.go, theme.go, entry.go, tournament.go,
// highscore.go). Store, cache, throttle and task queue contracts live next to
// them so engines and adapters can share them without importing each other.
package domain
