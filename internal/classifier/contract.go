package classifier

import "github.com/kiranshivaraju/errtrack/pkg/models"

// ContractProfile classifies rental contract sync failures.
func ContractProfile() Profile {
	return Profile{
		EntityType: EntityContract,
		Rules: []Rule{
			{"forbidden to edit the archive usage", models.CategoryPermission},
			{"permission denied", models.CategoryPermission},
			{"not allowed", models.CategoryPermission},
			{"start date", models.CategoryValidation},
			{"end date", models.CategoryValidation},
			{"required", models.CategoryValidation},
			{"invalid", models.CategoryValidation},
			{"not found", models.CategoryData},
			{"duplicate", models.CategoryData},
			{"overlapping", models.CategoryData},
			{"timeout", models.CategoryAPI},
			{"status code", models.CategoryAPI},
			{"connection", models.CategoryAPI},
		},
		ExtensionKeys: []string{
			"contract_number",
			"apartment_id",
			"tenant_id",
			"start_date",
			"end_date",
			"sync_direction",
		},
	}
}
