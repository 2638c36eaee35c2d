/*
Package queue defines batches of flow records waiting to be classified
as well as an interface for a Queue to manage them.

It also provides an in-memory implementation of the Queue interface
*/
package queue
