package domain

// ConnectivityCheck is the outcome of probing one dependency during a
// self-test run.
type ConnectivityCheck struct {
	Component  string `json:"component"`
	Ok         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type ConnectivityReport struct {
	Ok     bool                `json:"ok"`
	Checks []ConnectivityCheck `json:"checks"`
}
