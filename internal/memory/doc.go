// Package memory configures the Go memory limit in containers and provides
// backpressure for upload batches.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (Kubernetes Downward
// API) and MEMORY_RATIO unless GOMEMLIMIT is already set:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// A [Monitor] samples heap usage on an interval. Once usage crosses the
// critical water mark, [Monitor.Wait] blocks until it drops below the resume
// water mark. Batches call Wait before loading each item's payload.
package memory
