package models

type Role string

const (
	RoleAdmin   Role = "admin"
	RolePartner Role = "partner"
)

// Profile is the slice of an auth record the sale workflow reads.
type Profile struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Mobile      string `db:"mobile" json:"mobile"`
	Role        Role   `db:"role" json:"role"`
	IsActive    bool   `db:"is_active" json:"is_active"`
	PartnerCode string `db:"partner_code" json:"partner_code"`
}

// Actor is the resolved identity behind a request.
type Actor struct {
	ID       string
	Role     Role
	IsActive bool
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin && a.IsActive
}

func (a *Actor) IsPartner() bool {
	return a != nil && a.Role == RolePartner && a.IsActive
}

// Owns reports whether the actor is the partner who referred the sale.
func (a *Actor) Owns(sale *Sale) bool {
	return a.IsPartner() && sale != nil && sale.PartnerID != "" && sale.PartnerID == a.ID
}
