// Package writers publishes artifacts to disk.
//
// Design:
//   • An artifact appears at its final path complete or not at all.
//   • A failed step removes whatever stale artifact sits at that path.
//   • Writers know nothing of genes or contigs; callers render the bytes.
package writers
