package stream

import (
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/janstenpickle/docker-api/types"
)

// Specificity ranks identifier matches. A full content digest outranks a
// short ID.
type Specificity int

// Specificity levels.
const (
	SpecificityNone Specificity = iota
	SpecificityShort
	SpecificityDigest
)

// Match is an identifier found in one status event.
type Match struct {
	ID          string
	Specificity Specificity
	Source      types.EventKind
}

var (
	// "Successfully built <id>" is a server convention, not a protocol
	// guarantee. This is the only place that knows its wording.
	builtPattern = regexp.MustCompile(`(?m)^Successfully built ([0-9a-f]{12,64})\s*$`)

	statusIDPattern = regexp.MustCompile(`^(?:sha256:[0-9a-f]{64}|[0-9a-f]{12,64})$`)
	digestPattern   = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

// MatchIdentifier extracts a resource identifier from ev, if it carries one.
// Recognized forms are the build success line in stream text, a status value
// that is itself an identifier (import/create flows), and aux.ID.
func MatchIdentifier(ev *types.StatusEvent) (Match, bool) {
	if ev == nil || ev.IsError() {
		return Match{}, false
	}

	if len(ev.Aux) > 0 {
		var aux struct {
			ID string `json:"ID"`
		}
		if jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(ev.Aux, &aux) == nil && digestPattern.MatchString(aux.ID) {
			return Match{ID: aux.ID, Specificity: SpecificityDigest, Source: types.EventKindAux}, true
		}
	}

	if ev.Stream != "" {
		if m := builtPattern.FindStringSubmatch(ev.Stream); m != nil {
			return Match{ID: m[1], Specificity: specificityOf(m[1]), Source: types.EventKindStream}, true
		}
	}

	if ev.Status != "" {
		id := strings.TrimSpace(ev.Status)
		if statusIDPattern.MatchString(id) {
			return Match{ID: id, Specificity: specificityOf(id), Source: types.EventKindStatus}, true
		}
	}

	return Match{}, false
}

func specificityOf(id string) Specificity {
	if strings.HasPrefix(id, "sha256:") || len(id) == 64 {
		return SpecificityDigest
	}
	return SpecificityShort
}
