package models

// RouteRule is the flattened admin view of one rule scoped to a route.
type RouteRule struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Rule        string `json:"rule"`
}

// RouteSummary describes one route and how many rules it carries.
type RouteSummary struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	RuleCount   int    `json:"rule_count"`
}
