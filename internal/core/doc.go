// Package core implements the catalog import pipeline.
//
// A file moves through these stages, each finishing over every row before
// the next begins:
//
//  1. Extraction ([tabular.Extract]) turns bytes into header-keyed rows.
//  2. The [Mapper] resolves title, price, original_price, description,
//     category and brand through ordered header aliases.
//  3. [ValidateRow] checks each canonical row without consulting any state.
//  4. The [TaxonomyResolver] reads existing brands and categories
//     concurrently, then bulk-creates every missing name once per batch,
//     matching names by [NormalizeKey].
//  5. The [CommitExecutor] inserts valid rows one at a time in row order.
//     A failed insert is recorded and never rolls back earlier rows.
//  6. [Aggregate] folds the outcomes into an [ImportReport].
//
// [Service.ImportFile] refuses a file with any invalid row unless partial
// commits are allowed. [Service.Commit] is the tolerant path: invalid rows
// are reported as failed and the rest are written.
//
// # Failure severity
//
// A parse error, an empty file or the validation gate rejects the whole
// call before anything is written. A failed taxonomy bulk create aborts the
// batch under [TaxonomyAbort], or fails only the rows naming the affected
// brands or categories under [TaxonomyIsolate]. A failed product insert
// affects that row alone.
//
// # Error codes
//
// [MapError] turns any error from this package into a [UserMessage] with a
// support code; see error_messages.go for the table.
package core
