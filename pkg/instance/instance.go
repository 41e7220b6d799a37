package instance

import (
	"os"
	"strings"
)

const fallbackID = "tableorders-0"

// GetID identifies this process among replicas. Kubernetes pods expose
// HOSTNAME, local runs can pin TABLEORDERS_INSTANCE_ID.
func GetID() string {
	for _, key := range []string{"TABLEORDERS_INSTANCE_ID", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return fallbackID
}
