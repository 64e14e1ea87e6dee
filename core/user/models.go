package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/ritmatiza/core"
)

type Role string

// Roles
const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

var AllRoles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// SpotifyCredentials is the delegated credential triple of an admin account.
type SpotifyCredentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // UTC
}

// IsComplete reports whether both tokens are present.
func (c SpotifyCredentials) IsComplete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

type User struct {
	ID           int                `json:"id"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	Role         Role               `json:"role"`
	Points       int                `json:"points"`
	TeacherID    *int               `json:"teacher_id"`
	PasswordHash []byte             `json:"-"`
	Spotify      SpotifyCredentials `json:"-"`
	CreatedAt    time.Time          `json:"created_at"` // UTC
	UpdatedAt    time.Time          `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
// Role and TeacherID are only honoured when an admin creates the account.
type NewUser struct {
	Name            string `json:"name" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            Role   `json:"role" validate:"omitempty,role"`
	TeacherID       *int   `json:"teacher_id"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string `json:"name" validate:"max=255"`
	Email           string `json:"email" validate:"omitempty,email,max=255"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, uu.Email, origUsr.ID)
}

type QueryFilter struct {
	Role      Role `query:"role"`
	TeacherID *int `query:"teacher_id"`
}
