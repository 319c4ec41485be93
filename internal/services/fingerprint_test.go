package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/types"
)

func testVideo(id uuid.UUID, title string, sequence int) *types.Video {
	return &types.Video{
		ID:              id,
		Title:           title,
		Sequence:        sequence,
		DurationSeconds: 60 * sequence,
		CreatedAt:       time.Unix(1700000000, 0),
	}
}

func testDocument(id uuid.UUID, title string, sequence int) *types.Document {
	return &types.Document{
		ID:        id,
		Title:     title,
		Sequence:  sequence,
		CreatedAt: time.Unix(1700000000, 0),
	}
}

func TestBuildFingerprintDeterministic(t *testing.T) {
	v1 := testVideo(uuid.New(), "intro", 1)
	v2 := testVideo(uuid.New(), "deep dive", 2)
	d1 := testDocument(uuid.New(), "notes", 1)

	a, err := BuildFingerprint([]*types.Video{v1, v2}, []*types.Document{d1})
	if err != nil {
		t.Fatalf("BuildFingerprint: %v", err)
	}
	b, err := BuildFingerprint([]*types.Video{v2, v1}, []*types.Document{d1})
	if err != nil {
		t.Fatalf("BuildFingerprint: %v", err)
	}

	if a.Hash != b.Hash {
		t.Fatalf("hash depends on input order: %s vs %s", a.Hash, b.Hash)
	}
	if a.Signature != b.Signature {
		t.Fatalf("signature depends on input order")
	}
}

func TestBuildFingerprintChangesOnAddition(t *testing.T) {
	v1 := testVideo(uuid.New(), "intro", 1)
	d1 := testDocument(uuid.New(), "notes", 1)

	before, err := BuildFingerprint([]*types.Video{v1}, []*types.Document{d1})
	if err != nil {
		t.Fatalf("BuildFingerprint: %v", err)
	}
	v2 := testVideo(uuid.New(), "added later", 2)
	after, err := BuildFingerprint([]*types.Video{v1, v2}, []*types.Document{d1})
	if err != nil {
		t.Fatalf("BuildFingerprint: %v", err)
	}

	if before.Hash == after.Hash {
		t.Fatalf("hash unchanged after adding a video")
	}
}

func TestBuildFingerprintChangesOnReorder(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()

	before, err := BuildFingerprint([]*types.Video{testVideo(id1, "a", 1), testVideo(id2, "b", 2)}, nil)
	if err != nil {
		t.Fatalf("BuildFingerprint: %v", err)
	}
	after, err := BuildFingerprint([]*types.Video{testVideo(id1, "a", 2), testVideo(id2, "b", 1)}, nil)
	if err != nil {
		t.Fatalf("BuildFingerprint: %v", err)
	}

	if before.Hash == after.Hash {
		t.Fatalf("hash unchanged after swapping sequence positions")
	}
}

func TestParseSignatureIDsRoundTrip(t *testing.T) {
	v1 := testVideo(uuid.New(), "intro", 1)
	v2 := testVideo(uuid.New(), "outro", 2)
	d1 := testDocument(uuid.New(), "notes", 1)

	fp, err := BuildFingerprint([]*types.Video{v1, v2}, []*types.Document{d1})
	if err != nil {
		t.Fatalf("BuildFingerprint: %v", err)
	}

	videoIDs, documentIDs, err := ParseSignatureIDs(fp.Signature)
	if err != nil {
		t.Fatalf("ParseSignatureIDs: %v", err)
	}
	if len(videoIDs) != 2 || len(documentIDs) != 1 {
		t.Fatalf("got %d videos, %d documents, want 2 and 1", len(videoIDs), len(documentIDs))
	}
	for _, id := range []uuid.UUID{v1.ID, v2.ID} {
		if _, ok := videoIDs[id]; !ok {
			t.Fatalf("video %s missing from parsed signature", id)
		}
	}
	if _, ok := documentIDs[d1.ID]; !ok {
		t.Fatalf("document %s missing from parsed signature", d1.ID)
	}
}

func TestParseSignatureIDsEmpty(t *testing.T) {
	videoIDs, documentIDs, err := ParseSignatureIDs("")
	if err != nil {
		t.Fatalf("ParseSignatureIDs: %v", err)
	}
	if len(videoIDs) != 0 || len(documentIDs) != 0 {
		t.Fatalf("empty signature yielded ids")
	}
}
