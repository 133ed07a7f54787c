// Package core defines the shared contract types of the analysis engine:
// severities, file units, issues, resolved locations, and reports.
//
// These are DTOs (Data Transfer Objects) - they carry data without behavior
// and are safe to import from any layer. Keeping them here avoids import
// cycles between the engine, the location resolver, and front ends.
package core
