/*
Package ingest feeds flow records from log files to a tree.

A Watcher polls a directory for record files and pushes each of them as a
batch onto a queue. A Worker pulls the batches, classifies every record
with the tree, records its path on a visit tracker and emits a Highlight
for the renderer. A Generator writes synthetic record files for demos
and tests.
*/
package ingest
