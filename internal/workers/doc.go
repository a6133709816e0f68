/*
Package workers sizes and runs bounded worker pools in containerized
environments.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the
container CPU limit (Go 1.19+). The helpers here derive worker counts from
GOMAXPROCS:

	workers.ForCPU(4)  // 1 per CPU, at most 4
	workers.ForIO(16)  // 2 per CPU, at most 16

INGEST_WORKERS overrides the calculation (still capped by the limit):

	env:
	- name: INGEST_WORKERS
	  value: "4"

[Run] fans a fixed number of tasks out over such a pool with errgroup:

	err := workers.Run(ctx, len(paths), workers.ForIO(16), func(ctx context.Context, i int) error {
		item, err := mediatypes.FromFile(paths[i])
		items[i] = item
		return err
	})

All functions are safe for concurrent use.
*/
package workers
