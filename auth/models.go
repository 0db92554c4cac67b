package auth

import (
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleSeeker    Role = "seeker"
	RoleRecruiter Role = "recruiter"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSeeker, RoleRecruiter:
		return true
	default:
		return false
	}
}

// Profile is the optional, independently updated part of a user record.
type Profile struct {
	Bio                *string
	Skills             []string
	ResumeURL          *string
	ResumeOriginalName *string
	ProfilePhotoURL    *string
}

// User is the domain representation of a portal account.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	FullName     string
	Email        string
	PhoneNumber  string
	PasswordHash string
	Role         Role
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized projection returned to clients. It has no
// password hash field.
type PublicUser struct {
	ID          string        `json:"_id"`
	FullName    string        `json:"fullName"`
	Email       string        `json:"email"`
	PhoneNumber string        `json:"phoneNumber"`
	Role        Role          `json:"role"`
	Profile     PublicProfile `json:"profile"`
}

// PublicProfile is the wire shape of Profile.
type PublicProfile struct {
	Bio                *string  `json:"bio,omitempty"`
	Skills             []string `json:"skills"`
	Resume             *string  `json:"resume,omitempty"`
	ResumeOriginalName *string  `json:"resumeOriginalName,omitempty"`
	ProfilePhoto       *string  `json:"profilePhoto,omitempty"`
}

// Public returns the sanitized projection of u.
func (u User) Public() PublicUser {
	skills := u.Profile.Skills
	if skills == nil {
		skills = []string{}
	}
	return PublicUser{
		ID:          u.ID,
		FullName:    u.FullName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		Profile: PublicProfile{
			Bio:                u.Profile.Bio,
			Skills:             slices.Clone(skills),
			Resume:             u.Profile.ResumeURL,
			ResumeOriginalName: u.Profile.ResumeOriginalName,
			ProfilePhoto:       u.Profile.ProfilePhotoURL,
		},
	}
}

// File is an uploaded attachment (avatar or resume).
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
	Role        Role   `json:"role"`
	Avatar      *File  `json:"-"`
}

// LoginRequest contains user login credentials and the role the caller
// claims to hold.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// ProfileUpdate carries the fields a caller wants to change. A nil or empty
// field is treated as absent and leaves the stored value unchanged.
type ProfileUpdate struct {
	FullName    *string `json:"fullName"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
	Bio         *string `json:"bio"`
	Skills      *string `json:"skills"`
	Resume      *File   `json:"-"`
}

// ProfilePatch is the normalized set of column changes applied by the
// repository. Nil fields are left unchanged; a non-nil Skills slice replaces
// the stored list.
type ProfilePatch struct {
	FullName           *string
	Email              *string
	PhoneNumber        *string
	Bio                *string
	Skills             []string
	ResumeURL          *string
	ResumeOriginalName *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.PhoneNumber == nil && p.Bio == nil &&
		p.Skills == nil && p.ResumeURL == nil && p.ResumeOriginalName == nil
}

// Apply returns u with the patch merged in.
func (p ProfilePatch) Apply(u User) User {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	if p.Bio != nil {
		u.Profile.Bio = ptr(*p.Bio)
	}
	if p.Skills != nil {
		u.Profile.Skills = slices.Clone(p.Skills)
	}
	if p.ResumeURL != nil {
		u.Profile.ResumeURL = ptr(*p.ResumeURL)
	}
	if p.ResumeOriginalName != nil {
		u.Profile.ResumeOriginalName = ptr(*p.ResumeOriginalName)
	}
	return u
}

// ParseSkills splits a comma-delimited list, trimming whitespace and dropping
// empty and repeated entries. The first occurrence keeps its position. The
// result is never nil.
func ParseSkills(raw string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
