package classifier

import "github.com/kiranshivaraju/errtrack/pkg/models"

func ApartmentProfile() Profile {
	return Profile{
		EntityType: EntityApartment,
		Rules: []Rule{
			{"access denied", models.CategoryPermission},
			{"forbidden", models.CategoryPermission},
			{"missing", models.CategoryValidation},
			{"invalid", models.CategoryValidation},
			{"not found", models.CategoryData},
			{"already exists", models.CategoryData},
			{"rate limit", models.CategoryAPI},
			{"timeout", models.CategoryAPI},
			{"status code", models.CategoryAPI},
		},
		ExtensionKeys: []string{
			"apartment_number",
			"building_id",
			"property_id",
			"floor",
			"sync_direction",
		},
	}
}
