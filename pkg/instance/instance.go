package instance

import "github.com/clubsphere/clubsphere-backend/pkg/env"

// GetID identifies this process in logs. CLUBSPHERE_INSTANCE_ID wins over the
// container hostname.
func GetID() string {
	return env.Get("CLUBSPHERE_INSTANCE_ID", env.Get("HOSTNAME", "local"))
}
