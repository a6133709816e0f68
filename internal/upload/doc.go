/*
Package upload drives batches of media items through the ingest pipeline.

Each item moves through pending, uploading and then success or error.
Items are processed strictly one at a time, in the order they were added:

 1. extract provenance metadata
 2. store the original bytes
 3. normalize to JPEG and store the derivative when the format needs it
 4. render and store a preview (best effort; falls back to the original's URL)
 5. register the asset in the library, or add it to the target album

A registration rejected for quota pauses the batch. The item that hit the
limit goes back to pending and keeps everything it already stored. The batch
then waits for one of four decisions passed to Resolve:

	skip-rest  discard pending items, keep successes, complete
	override   register the paused item and the rest with quota bypassed
	upgrade    close the batch and hand off to the UpgradeHandler
	cancel     leave the batch paused; Retry and a later Run stay possible

Blobs stored for items that are discarded before registration are recorded
in the Ledger as orphans for an out-of-band collector.

Every item owns one PreviewHandle, released exactly once when the item is
removed, skipped, abandoned or the batch is disposed.
*/
package upload
