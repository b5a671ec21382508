// Package binder ties editing surfaces to save coordinators.
//
// A Registry owns one save.Coordinator per open document. Every editing
// surface attached to a document holds a View; views share the document's
// coordinator and each may subscribe its own status sink. Detaching a view
// flushes the document, and detaching the last view disposes the
// coordinator. A Workspace keeps a single active view and switches it.
package binder
