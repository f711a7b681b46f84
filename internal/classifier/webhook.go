package classifier

import "github.com/kiranshivaraju/errtrack/pkg/models"

// WebhookProfile classifies failures while consuming inbound CRM webhooks.
// The entity id is the webhook delivery id.
func WebhookProfile() Profile {
	return Profile{
		EntityType: EntityWebhook,
		Rules: []Rule{
			{"signature", models.CategoryPermission},
			{"unauthorized", models.CategoryPermission},
			{"unknown event", models.CategoryValidation},
			{"malformed", models.CategoryValidation},
			{"payload", models.CategoryValidation},
			{"duplicate delivery", models.CategoryData},
			{"already processed", models.CategoryData},
			{"timeout", models.CategoryAPI},
			{"retry", models.CategoryAPI},
			{"status code", models.CategoryAPI},
		},
		ExtensionKeys: []string{
			"event_type",
			"webhook_id",
			"source_system",
			"payload_id",
			"delivery_attempt",
		},
		IDKey: "webhook_id",
	}
}
