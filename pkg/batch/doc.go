// Package batch prepares numerically encoded corpora for sequence-model
// training.
//
// This package contains:
//   - Permutation helpers for sorting sequences by length and shuffling
//     batches, along with their inverses
//   - Partition, which cuts a flat token stream into fixed-length
//     windows over parallel columns
//   - PadAndBatch and Dataset, which group variable-length sequences
//     into padded batches
//   - Learning-rate schedules with warmup and decay phases
//
// All batched data is time major: entry [t][b] is token t of the b-th
// sequence in the batch.
package batch
