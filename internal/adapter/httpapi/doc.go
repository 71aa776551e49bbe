// Package httpapi serves the admin API over gin.
//
// Durations travel as integer milliseconds in both directions. Errors are
// rendered as {"error": ..., "kind": ...} with the status picked from
// shared.KindOf.
package httpapi
