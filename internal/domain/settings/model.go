package settings

import "time"

type PaymentMethods struct {
	Transfer bool `json:"transfer"`
	Card     bool `json:"card"`
}

type BankInfo struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"`
	OwnerName     string `json:"ownerName"`
	OwnerID       string `json:"ownerId"`
}

type PaymentSettings struct {
	RetentionPercentage float64        `json:"retentionPercentage"`
	Methods             PaymentMethods `json:"paymentMethods"`
	Bank                BankInfo       `json:"bankInfo"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// Enabled reports whether method ("card" or "transfer") may be used.
func (p *PaymentSettings) Enabled(method string) bool {
	switch method {
	case "card":
		return p.Methods.Card
	case "transfer":
		return p.Methods.Transfer
	}
	return false
}

type Notifications struct {
	Email         bool `json:"emailNotifications"`
	SMS           bool `json:"smsNotifications"`
	Reminders     bool `json:"appointmentReminders"`
	Registrations bool `json:"newUserRegistrations"`
}

type PlatformSettings struct {
	SiteName        string        `json:"siteName"`
	SiteEmail       string        `json:"siteEmail"`
	ConsultationFee float64       `json:"consultationFee"`
	MaxBookingDays  int           `json:"maxBookingDays"`
	MaintenanceMode bool          `json:"maintenanceMode"`
	Notifications   Notifications `json:"notifications"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

func DefaultPayment() *PaymentSettings {
	return &PaymentSettings{
		RetentionPercentage: 40,
		Methods:             PaymentMethods{Transfer: true, Card: true},
	}
}

func DefaultPlatform() *PlatformSettings {
	return &PlatformSettings{
		SiteName:        "RCH",
		ConsultationFee: 150,
		MaxBookingDays:  30,
		Notifications:   Notifications{Email: true, Reminders: true, Registrations: true},
	}
}
