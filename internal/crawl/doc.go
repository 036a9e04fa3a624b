// Package crawl implements the bounded sequential scan over a catalog's id space.
//
// An Estimator first guesses an upper bound for the populated ids by probing
// exponentially growing windows. The Driver then walks every id from the start
// id, skipping ids already present in the table, and stops once it is past the
// estimated bound and has seen GapLimit consecutive ids without a success.
// Records are handed to a Checkpointer every CheckpointBatch new records, on
// request, and once more when the scan ends for any reason.
package crawl
