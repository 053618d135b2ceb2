package integrate

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resolve"
)

// invalidFinish are finish markers for starts that did not produce a placing
// (excluded, scratched, disqualified, did not start).
var invalidFinish = map[string]bool{"外": true, "消": true, "DQ": true, "DNS": true, "中": true, "取": true}

// ParseFinish converts a raw finish position to a number. Full-width digits
// are folded first. Non-placings and anything unparsable yield nil.
func ParseFinish(raw string) *int {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" || invalidFinish[strings.ToUpper(s)] {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return nil
	}
	return &n
}

// jockeyIdentity returns a comparable identity for a jockey name: the
// canonical id when the name resolves, otherwise the normalized name.
func jockeyIdentity(ctx context.Context, names *resolve.Cache, raw string) (string, error) {
	n := resolve.Normalize(raw)
	if n == "" {
		return "", nil
	}
	if names == nil {
		return "raw:" + n, nil
	}
	m, err := names.Resolve(ctx, raw)
	if err != nil {
		return "", err
	}
	if m.Found() {
		return m.ID, nil
	}
	return "raw:" + n, nil
}

// resolveJockeys fills JockeyID on the entrant and every history start.
// Unresolved names get a "raw:" identity so that equality still works.
func resolveJockeys(ctx context.Context, names *resolve.Cache, rec *model.MergedRecord) error {
	id, err := jockeyIdentity(ctx, names, rec.Entrant.JockeyName)
	if err != nil {
		return err
	}
	rec.Entrant.JockeyID = id
	for i := range rec.History {
		id, err := jockeyIdentity(ctx, names, rec.History[i].JockeyName)
		if err != nil {
			return err
		}
		rec.History[i].JockeyID = id
	}
	return nil
}

// continuity sets JockeyChanged from history ordered most recent first.
// Transition i compares start i with the start before it (i+1). A transition
// is unset when either start is missing or has no known jockey, so an
// entrant with two starts has only its first transition set.
func continuity(rec *model.MergedRecord) {
	for i := 0; i < model.ContinuityDepth; i++ {
		rec.JockeyChanged[i] = model.TriUnset
		if i+1 >= len(rec.History) {
			continue
		}
		a, b := rec.History[i].JockeyID, rec.History[i+1].JockeyID
		if a == "" || b == "" {
			continue
		}
		rec.JockeyChanged[i] = model.TriOf(a != b)
	}
}

// jockeyChangedToday compares today's jockey with the most recent start.
func jockeyChangedToday(rec *model.MergedRecord) model.Tri {
	if len(rec.History) == 0 || rec.Entrant.JockeyID == "" || rec.History[0].JockeyID == "" {
		return model.TriUnset
	}
	return model.TriOf(rec.Entrant.JockeyID != rec.History[0].JockeyID)
}
