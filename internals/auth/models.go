package auth

type Role string

const (
	RoleOperator Role = "operator"
	RoleBidder   Role = "bidder"
)

// Users Table structure. Bidders are tied to the team they bid for.
type Users struct {
	UserID       int     `json:"user_id" gorm:"primaryKey;autoIncrement;not null"`
	UserName     string  `json:"user_name" gorm:"uniqueIndex;not null"`
	PasswordHash string  `json:"-" gorm:"not null"`
	Role         Role    `json:"role" gorm:"not null"`
	TeamID       *string `json:"team_id"`
}

type LoginRequestBody struct {
	Password string `json:"password"`
	UserName string `json:"user_name"`
}

// Claims is what a validated token tells us about the caller.
type Claims struct {
	UserID int
	Role   Role
	TeamID string
}

func (c Claims) IsOperator() bool {
	return c.Role == RoleOperator
}

// CanBidFor reports whether the caller may place bids for teamID.
func (c Claims) CanBidFor(teamID string) bool {
	return c.IsOperator() || (c.Role == RoleBidder && c.TeamID != "" && c.TeamID == teamID)
}
