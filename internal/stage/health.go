package stage

// Health is one stage's readiness report, surfaced by the status command and
// the manager's status summary.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage as ready to accept jobs.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage as not ready, with the reason in Detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
