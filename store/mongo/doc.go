// Package mongo implements store.Store on MongoDB using the official v2
// driver. Status transitions are compare-and-set UpdateOne calls filtered
// on the expected status; insertion order comes from a counter document.
//
// The caller may hand over an existing *mongo.Database with New, or let
// Connect open and own the client:
//
//	s, err := mongo.Connect(ctx, "mongodb://localhost:27017", "vmjobs")
//	if err != nil { ... }
//	defer s.Close()
//	s.Migrate(ctx)
package mongo
