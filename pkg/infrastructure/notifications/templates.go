package notifications

import (
	"fmt"
	"strings"
)

// Push is one rendered notification for one recipient.
type Push struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]string
}

// Compose renders an onboarding notification into pushes. eventType is the
// short name ("stage_advanced"), not the CloudEvent type. Unknown types
// render nothing.
func Compose(eventType string, payload map[string]interface{}) []Push {
	agentID := str(payload, "agentId")
	managerID := str(payload, "managerId")
	data := map[string]string{"type": eventType, "agentId": agentID}

	one := func(userID, title, body string) []Push {
		if userID == "" {
			return nil
		}
		return []Push{{UserID: userID, Title: title, Body: body, Data: data}}
	}

	switch eventType {
	case "stage_advanced":
		to := humanize(str(payload, "to"))
		return append(
			one(agentID, "You're moving forward", "Your onboarding is now at: "+to),
			one(managerID, "Agent advanced", fmt.Sprintf("%s is now at: %s", agentID, to))...,
		)
	case "onboarding_completed":
		return append(
			one(agentID, "Onboarding complete", "Welcome aboard! Your onboarding is complete."),
			one(managerID, "Agent onboarded", agentID+" has completed onboarding")...,
		)
	case "message_sent":
		data["messageId"] = str(payload, "messageId")
		return one(str(payload, "recipientId"), "New message", str(payload, "preview"))
	case "needs_info":
		if step := str(payload, "stepId"); step != "" {
			data["stepId"] = step
		}
		return one(agentID, "More information needed", str(payload, "message"))
	case "agent_approved":
		return one(agentID, "Portal access approved", "You can now sign in to the agent portal.")
	}
	return nil
}

func str(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func humanize(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
