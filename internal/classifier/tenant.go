package classifier

import "github.com/kiranshivaraju/errtrack/pkg/models"

// TenantProfile classifies tenant (person) sync failures. Contact data
// problems are validation errors.
func TenantProfile() Profile {
	return Profile{
		EntityType: EntityTenant,
		Rules: []Rule{
			{"consent", models.CategoryPermission},
			{"forbidden", models.CategoryPermission},
			{"email", models.CategoryValidation},
			{"phone", models.CategoryValidation},
			{"required", models.CategoryValidation},
			{"invalid", models.CategoryValidation},
			{"not found", models.CategoryData},
			{"duplicate", models.CategoryData},
			{"timeout", models.CategoryAPI},
			{"unavailable", models.CategoryAPI},
		},
		ExtensionKeys: []string{
			"tenant_number",
			"contract_id",
			"email_domain",
			"sync_direction",
		},
	}
}
