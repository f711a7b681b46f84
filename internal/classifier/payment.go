package classifier

import "github.com/kiranshivaraju/errtrack/pkg/models"

func PaymentProfile() Profile {
	return Profile{
		EntityType: EntityPayment,
		Rules: []Rule{
			{"not authorized", models.CategoryPermission},
			{"forbidden", models.CategoryPermission},
			{"amount", models.CategoryValidation},
			{"currency", models.CategoryValidation},
			{"iban", models.CategoryValidation},
			{"invalid", models.CategoryValidation},
			{"already booked", models.CategoryData},
			{"duplicate", models.CategoryData},
			{"not found", models.CategoryData},
			{"declined", models.CategoryAPI},
			{"gateway", models.CategoryAPI},
			{"timeout", models.CategoryAPI},
		},
		ExtensionKeys: []string{
			"payment_id",
			"invoice_number",
			"amount",
			"currency",
			"provider",
			"contract_id",
		},
		IDKey: "payment_id",
	}
}
