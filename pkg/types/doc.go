// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pyq-harvester pipeline:
// the raw paper document fetched from the source platform, the canonical
// exam schema written to subject libraries, and per-stage configuration.
package types
