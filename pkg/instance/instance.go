package instance

import "github.com/angelmondragon/storefront-backend/pkg/env"

const defaultID = "storefront-0"

// GetID identifies this process in logs and lock values. Container
// platforms set HOSTNAME, which is used when no explicit id is given.
func GetID() string {
	return env.Lookup(defaultID, "STOREFRONT_INSTANCE_ID", "WORKER_ID", "HOSTNAME")
}
