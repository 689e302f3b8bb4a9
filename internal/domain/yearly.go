package domain

// SiteYearSummary rolls one site's intervals for a measure up to a calendar year.
type SiteYearSummary struct {
	Measure   string
	SiteID    int64
	Year      int
	Numerator int64
	ListSize  int64 // denominator of the site's earliest interval in the year
	Intervals int
	Zero      bool // Numerator == 0
}

// NationalYearSummary rolls site-years up to national scope.
// Corresponds to the national_year_summaries table.
type NationalYearSummary struct {
	ResultSet

	Measure       string
	Year          int
	Numerator     int64
	ListSize      int64
	Sites         int
	SitesZero     int
	RatePer1000   float64 // 1000 * Numerator / ListSize
	PropSitesZero float64 // SitesZero / Sites
}
