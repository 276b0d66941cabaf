package schema

import "fmt"

// UserProfile identifies a signed-in person and the household their
// devices currently sync against. For a user who has never joined a
// shared household, CurrentHouseholdID equals their own UID.
type UserProfile struct {
	UID                string `json:"uid" bson:"uid"`
	Email              string `json:"email" bson:"email"`
	DisplayName        string `json:"displayName" bson:"displayName"`
	CurrentHouseholdID string `json:"currentHouseholdId" bson:"currentHouseholdId"`
}

// Validate checks that the profile has valid field values.
func (p *UserProfile) Validate() error {
	if p.UID == "" {
		return fmt.Errorf("uid is required")
	}
	if p.CurrentHouseholdID == "" {
		return fmt.Errorf("currentHouseholdId is required")
	}
	return nil
}

// Household is the remote document describing a sync partition and
// its member user ids.
type Household struct {
	Name    string   `json:"name" bson:"name"`
	Members []string `json:"members" bson:"members"`
}

// HasMember reports whether uid is listed in the household.
func (h *Household) HasMember(uid string) bool {
	for _, m := range h.Members {
		if m == uid {
			return true
		}
	}
	return false
}
