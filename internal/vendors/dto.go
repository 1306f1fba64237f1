package vendors

// BankDetailsInput mirrors BankDetails for request payloads.
type BankDetailsInput struct {
	AccountName   string `json:"accountName" validate:"omitempty,max=200"`
	AccountNumber string `json:"accountNumber" validate:"omitempty,max=50"`
	BankName      string `json:"bankName" validate:"omitempty,max=200"`
	Branch        string `json:"branch" validate:"omitempty,max=200"`
}

// CreateVendorRequest is the payload for registering a vendor.
type CreateVendorRequest struct {
	Name             string           `json:"name" validate:"required,max=200"`
	Email            string           `json:"email" validate:"required,email"`
	Phone            string           `json:"phone" validate:"omitempty,max=50"`
	Address          string           `json:"address" validate:"omitempty,max=500"`
	RegistrationType string           `json:"registrationType" validate:"required,oneof=pan vat"`
	PANNumber        *string          `json:"panNumber" validate:"omitempty,max=50"`
	VATNumber        *string          `json:"vatNumber" validate:"omitempty,max=50"`
	Category         string           `json:"category" validate:"required,oneof=supplier manufacturer distributor service-provider"`
	Bank             BankDetailsInput `json:"bankDetails"`
}

// UpdateVendorRequest carries optional field updates.
type UpdateVendorRequest struct {
	Name             *string           `json:"name,omitempty" validate:"omitempty,max=200"`
	Email            *string           `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string           `json:"phone,omitempty" validate:"omitempty,max=50"`
	Address          *string           `json:"address,omitempty" validate:"omitempty,max=500"`
	RegistrationType *string           `json:"registrationType,omitempty" validate:"omitempty,oneof=pan vat"`
	PANNumber        *string           `json:"panNumber,omitempty" validate:"omitempty,max=50"`
	VATNumber        *string           `json:"vatNumber,omitempty" validate:"omitempty,max=50"`
	Category         *string           `json:"category,omitempty" validate:"omitempty,oneof=supplier manufacturer distributor service-provider"`
	Bank             *BankDetailsInput `json:"bankDetails,omitempty"`
	Status           *string           `json:"status,omitempty" validate:"omitempty,oneof=active inactive blacklisted"`
}

// ListFilters narrows vendor listings.
type ListFilters struct {
	Status   string
	Category string
	Search   string
}
