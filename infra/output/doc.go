// Package output provides the persistent sink backends: a JSONL file
// container ("file") and a SQLite database ("database"). Importing the
// package registers both with core/output.
package output
