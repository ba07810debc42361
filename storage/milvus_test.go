package storage

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

func TestMilvusCollectionSchemaCarriesName(t *testing.T) {
	s := &MilvusVectorStore{coll: "media_chunks", dim: 256}
	schema := s.collectionSchema()

	// An unnamed schema is rejected client-side before any RPC, so a fresh
	// deployment could never create its own collection.
	if schema.CollectionName != "media_chunks" {
		t.Fatalf("schema collection name = %q, want %q", schema.CollectionName, "media_chunks")
	}

	fields := map[string]*entity.Field{}
	for _, f := range schema.Fields {
		fields[f.Name] = f
	}
	for _, name := range []string{"id", "chunk_id", "media_id", "seq", "text", "vector"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("schema missing field %q", name)
		}
	}
	if f := fields["id"]; f == nil || !f.PrimaryKey || !f.AutoID {
		t.Error("id must be an auto-generated primary key")
	}
	if f := fields["vector"]; f != nil {
		if got := f.TypeParams[entity.TypeParamDim]; got != "256" {
			t.Errorf("vector dim = %q, want 256", got)
		}
	}
}
