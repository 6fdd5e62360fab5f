package domain

import (
	"context"
	"encoding/json"
)

// Profile collections. These are the only two collections the service reads;
// role resolution probes both by user id and derives the role from which one
// holds a document.
const (
	CollectionJobSeekerProfiles = "job_seeker_profiles"
	CollectionEmployerProfiles  = "employer_profiles"
)

// Document is the result of a point read against a profile collection.
// Exists false with a nil error means the collection simply has no document
// for that id, which is a normal outcome during role resolution, not a
// failure.
type Document struct {
	Exists bool
	Data   json.RawMessage
}

// ProfileDocumentStore is the boundary to the managed document database that
// holds profile documents, keyed by user id within a collection.
type ProfileDocumentStore interface {
	// GetDocument reads the document with the given id from collection.
	GetDocument(ctx context.Context, collection, id string) (Document, error)

	// MergeDocument applies a partial update: fields present in patch are
	// written, fields absent from patch are left untouched. The document
	// is created when it does not exist yet.
	MergeDocument(ctx context.Context, collection, id string, patch json.RawMessage) (Document, error)

	// DeleteDocument removes the document with the given id. Deleting an
	// absent document is not an error.
	DeleteDocument(ctx context.Context, collection, id string) error
}
