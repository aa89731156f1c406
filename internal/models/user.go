package models

import "time"

type Role string

const (
	RoleTrader             Role = "trader"
	RoleTechnicalCommittee Role = "technical_committee"
	RoleHigherCommittee    Role = "higher_committee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTrader, RoleTechnicalCommittee, RoleHigherCommittee:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
