package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/opencampus/lms-backend/internal/types"
)

// signatureEntry is one line of a unit's content signature. The struct
// shape is fixed so json.Marshal is deterministic; quiz content never
// appears here.
type signatureEntry struct {
	Kind            string    `json:"kind"`
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Order           int       `json:"order"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAtUnix   int64     `json:"created_at_unix"`
}

// UnitFingerprint is the derived content identity of a unit: the canonical
// signature of its current videos and documents, and a digest over it.
type UnitFingerprint struct {
	Hash        string
	Signature   string
	VideoIDs    []uuid.UUID
	DocumentIDs []uuid.UUID
}

// BuildFingerprint derives a unit fingerprint from its current video and
// document membership. Entries are ordered by (kind, order, id) so the same
// content set always serializes identically regardless of query order.
func BuildFingerprint(videos []*types.Video, documents []*types.Document) (UnitFingerprint, error) {
	entries := make([]signatureEntry, 0, len(videos)+len(documents))
	videoIDs := make([]uuid.UUID, 0, len(videos))
	documentIDs := make([]uuid.UUID, 0, len(documents))

	for _, v := range videos {
		entries = append(entries, signatureEntry{
			Kind:            types.ContentTypeVideo,
			ID:              v.ID,
			Title:           v.Title,
			Order:           v.Sequence,
			DurationSeconds: v.DurationSeconds,
			CreatedAtUnix:   v.CreatedAt.Unix(),
		})
		videoIDs = append(videoIDs, v.ID)
	}
	for _, d := range documents {
		entries = append(entries, signatureEntry{
			Kind:          types.ContentTypeDocument,
			ID:            d.ID,
			Title:         d.Title,
			Order:         d.Sequence,
			CreatedAtUnix: d.CreatedAt.Unix(),
		})
		documentIDs = append(documentIDs, d.ID)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		if entries[i].Order != entries[j].Order {
			return entries[i].Order < entries[j].Order
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})

	raw, err := json.Marshal(entries)
	if err != nil {
		return UnitFingerprint{}, fmt.Errorf("serialize signature: %w", err)
	}
	sum := sha256.Sum256(raw)

	return UnitFingerprint{
		Hash:        hex.EncodeToString(sum[:]),
		Signature:   string(raw),
		VideoIDs:    videoIDs,
		DocumentIDs: documentIDs,
	}, nil
}

// ParseSignatureIDs recovers the video and document id sets from a stored
// signature, so a diff can compare today's membership against what the
// student completed.
func ParseSignatureIDs(signature string) (videoIDs, documentIDs map[uuid.UUID]struct{}, err error) {
	videoIDs = map[uuid.UUID]struct{}{}
	documentIDs = map[uuid.UUID]struct{}{}
	if signature == "" {
		return videoIDs, documentIDs, nil
	}
	var entries []signatureEntry
	if err := json.Unmarshal([]byte(signature), &entries); err != nil {
		return nil, nil, fmt.Errorf("parse signature: %w", err)
	}
	for _, e := range entries {
		switch e.Kind {
		case types.ContentTypeVideo:
			videoIDs[e.ID] = struct{}{}
		case types.ContentTypeDocument:
			documentIDs[e.ID] = struct{}{}
		}
	}
	return videoIDs, documentIDs, nil
}
