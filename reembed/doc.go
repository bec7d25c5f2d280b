// Package reembed recomputes the vectors of stored chunks in place.
//
// Use it after changing the embedding model: vectors from different models
// are not comparable, so every collection a query touches must be
// reembedded with the model the query side uses.
package reembed
