package shared

const (
	ProjectID = "agentflow-onboarding" // Can be overridden by GOOGLE_CLOUD_PROJECT

	TopicOnboardingNotifications = "topic-onboarding-notifications"

	CollectionAgents     = "agents"
	CollectionUsers      = "users"
	CollectionThreads    = "threads"
	CollectionAgreements = "agreements"

	SubcollectionSteps     = "steps"
	SubcollectionDocuments = "documents"
	SubcollectionActivity  = "activity"
	SubcollectionMessages  = "messages"

	DefaultMaxUploadBytes   = 10 << 20
	MaxMessageLength        = 4000
	MaxNeedsInfoLength      = 2000
	DefaultActivityPageSize = 50

	CloudEventSource     = "/agentflow/onboarding"
	CloudEventTypePrefix = "com.agentflow.onboarding."
)
