package domain

// ResultSet identifies the outputs derived from one input data version under
// one configuration. Output tables are keyed and read by it.
type ResultSet struct {
	DataVersion string // sha256 of the loaded input rows
	ConfigHash  string // sha256 of the effective configuration
}
