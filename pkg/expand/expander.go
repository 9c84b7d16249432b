package expand

import (
	"strings"

	"github.com/nexus-rd/nexus/pkg/domain"
)

// Expander derives follow-up sub-queries from findings. Expansion is a pure
// computation: the same finding and seen-set always produce the same
// sub-queries, and nothing here touches session state or the network.
type Expander struct {
	fanOut   int
	maxDepth int
}

// New creates an expander with a per-finding fan-out cap and a recursion
// depth limit. Sub-queries at a depth beyond maxDepth are never produced.
func New(fanOut, maxDepth int) *Expander {
	if fanOut < 1 {
		fanOut = 1
	}
	return &Expander{
		fanOut:   fanOut,
		maxDepth: maxDepth,
	}
}

// templates generate fallback sub-queries when a finding carries no
// whitespace hints of its own
var templates = []string{
	"%s competitive landscape",
	"%s patent filings recent",
	"%s commercialization barriers",
}

// Expand derives at most fanOut sub-queries from a finding. The seen set
// holds normalized forms of every query already issued in the session;
// duplicates against it are dropped. Findings already at the depth limit
// expand to nothing.
func (e *Expander) Expand(finding domain.Finding, seen map[string]struct{}) []domain.SubQuery {
	childDepth := finding.Depth + 1
	if childDepth > e.maxDepth {
		return nil
	}

	candidates := make([]string, 0, len(finding.Hints)+len(templates))
	candidates = append(candidates, finding.Hints...)
	if finding.Title != "" {
		for _, tmpl := range templates {
			candidates = append(candidates, strings.Replace(tmpl, "%s", finding.Title, 1))
		}
	}

	var out []domain.SubQuery
	local := make(map[string]struct{})
	for _, candidate := range candidates {
		if len(out) >= e.fanOut {
			break
		}
		key := Normalize(candidate)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if _, dup := local[key]; dup {
			continue
		}
		local[key] = struct{}{}
		out = append(out, domain.SubQuery{
			ParentFinding: finding.ID,
			Query:         strings.TrimSpace(candidate),
			Depth:         childDepth,
			Origin:        finding.Agent,
		})
	}
	return out
}

// Normalize maps a query to its dedupe key: lowercased with runs of
// whitespace collapsed to single spaces
func Normalize(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
