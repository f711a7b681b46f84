package classifier

// Entity type tags of the built-in profiles.
const (
	EntityContract  = "contract"
	EntityApartment = "apartment"
	EntityTenant    = "tenant"
	EntityWebhook   = "webhook"
	EntityPayment   = "payment"
)

// DefaultProfiles returns the built-in entity profiles.
func DefaultProfiles() []Profile {
	return []Profile{
		ContractProfile(),
		ApartmentProfile(),
		TenantProfile(),
		WebhookProfile(),
		PaymentProfile(),
	}
}
