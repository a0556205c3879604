package local

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	session "github.com/clubsphere/go-session"
)

// Account is the locally stored identity record.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	DisplayName    string     `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL      string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

type accountIdentity struct {
	subjectID   string
	email       string
	displayName string
	avatarURL   string
}

var _ session.Identity = accountIdentity{}

func (a accountIdentity) SubjectID() string   { return a.subjectID }
func (a accountIdentity) Email() string       { return a.email }
func (a accountIdentity) DisplayName() string { return a.displayName }
func (a accountIdentity) AvatarURL() string   { return a.avatarURL }

func identityFromAccount(acct *Account) accountIdentity {
	return accountIdentity{
		subjectID:   acct.ID.String(),
		email:       acct.Email,
		displayName: acct.DisplayName,
		avatarURL:   acct.AvatarURL,
	}
}
