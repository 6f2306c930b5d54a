package tenant

import "expvar"

var (
	metricTenantLoads     = expvar.NewInt("tenant_loads_total")
	metricCommits         = expvar.NewInt("tenant_commits_total")
	metricStorageFailures = expvar.NewInt("tenant_storage_failures_total")
)
