package lode

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/justapithecus/lode/lode"
)

// ErrBuildNotFound is returned when no transcript exists for a build.
var ErrBuildNotFound = errors.New("build transcript not found")

// BuildTranscript is a stored transcript read back from the dataset.
type BuildTranscript struct {
	Result ResultRecord  `json:"result"`
	Events []EventRecord `json:"events"`
}

// QueryTranscript reads the transcript of buildID. Events are ordered by seq.
func QueryTranscript(ctx context.Context, ds lode.Dataset, buildID string) (*BuildTranscript, error) {
	if buildID == "" {
		return nil, errors.New("build id is required")
	}

	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Latest first; a rewritten build ID resolves to its newest snapshot.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, KeyBuildID, buildID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// The manifest is a coarse filter; record fields are authoritative.
		var (
			out   BuildTranscript
			found bool
		)
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || toString(record["build_id"]) != buildID {
				continue
			}
			switch toString(record["record_kind"]) {
			case RecordKindEvent:
				out.Events = append(out.Events, eventRecordFrom(record))
			case RecordKindResult:
				out.Result = resultRecordFrom(record)
				found = true
			}
		}
		if !found {
			continue
		}
		sort.SliceStable(out.Events, func(a, b int) bool {
			return out.Events[a].Seq < out.Events[b].Seq
		})
		return &out, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, buildID)
}

// ListBuilds returns the result records of the most recent builds, newest
// first. day filters by partition day when non-empty; limit <= 0 means all.
func ListBuilds(ctx context.Context, ds lode.Dataset, day string, limit int) ([]ResultRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	var out []ResultRecord
	seen := make(map[string]struct{})
	for i := len(snapshots) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		snap := snapshots[i]
		if !snapshotMatches(snap, KeyRecordKind, RecordKindResult) || !snapshotMatches(snap, KeyDay, day) {
			continue
		}
		ids := partitionValues(snap, KeyBuildID)

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || toString(record["record_kind"]) != RecordKindResult {
				continue
			}
			id := toString(record["build_id"])
			if _, ok := ids[id]; !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			if day != "" && toString(record["day"]) != day {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, resultRecordFrom(record))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
