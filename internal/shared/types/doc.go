// Package types defines the shared data model for the shell host:
// lifecycle states, windowing modes, activity types, launch requests
// and the closed set of launch results.
//
// These are plain records. All mutation goes through the orchestrator;
// the enums here carry the legality tables the orchestrator enforces.
package types
