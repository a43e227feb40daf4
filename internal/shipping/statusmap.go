package shipping

import (
	"strings"
)

// Milestone is a tracking state that moves an order forward.
type Milestone string

const (
	MilestoneNone      Milestone = ""
	MilestoneShipped   Milestone = "shipped"
	MilestoneDelivered Milestone = "delivered"
)

// MapTrackingStatus converts carrier tracking statuses into order milestones.
// Statuses that do not advance an order map to MilestoneNone.
func MapTrackingStatus(external string) Milestone {
	switch strings.ToUpper(strings.TrimSpace(external)) {
	case "TRANSIT", "IN_TRANSIT", "OUT_FOR_DELIVERY":
		return MilestoneShipped
	case "DELIVERED":
		return MilestoneDelivered
	}
	return MilestoneNone
}
