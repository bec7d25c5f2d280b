// Package ingestion loads department folders of markdown and CSV files
// into their collections.
//
// A data root holds one folder per department; folder "hr" feeds the
// "hr_docs" collection. For each file the Pipeline:
//   - Skips it when its contents are unchanged since the last run
//   - Cuts it into chunks (markdown by heading and sentence, CSV by row)
//   - Embeds the chunks in batches on a worker pool
//   - Stores them under IDs derived from department, file name and position
//
// Chunks of files that were removed or shrank are deleted. Watch repeats
// this whenever a department folder changes.
package ingestion
