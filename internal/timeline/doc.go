// Package timeline provides arithmetic over half-open time ranges measured
// in seconds. All functions are pure; callers own ordering and mutation.
package timeline
