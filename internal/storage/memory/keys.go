package memory

import (
	"fmt"

	"seasonality-lab/internal/domain"
)

// dateLayout formats interval dates inside composite keys.
const dateLayout = "2006-01-02"

// groupKey generates the key for a (measure, season, pandemic_period) group.
func groupKey(g domain.GroupKey) string {
	return fmt.Sprintf("%s|%s|%s", g.Measure, g.Season, g.PandemicPeriod)
}

// compareGroups orders groups by measure, season, pandemic period.
func compareGroups(a, b domain.GroupKey) int {
	switch {
	case a.Measure != b.Measure:
		return compareStrings(a.Measure, b.Measure)
	case a.Season != b.Season:
		return compareStrings(string(a.Season), string(b.Season))
	default:
		return compareStrings(string(a.PandemicPeriod), string(b.PandemicPeriod))
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// setKey prefixes a row key with its result set.
func setKey(set domain.ResultSet, key string) string {
	return set.DataVersion + "|" + set.ConfigHash + "|" + key
}
