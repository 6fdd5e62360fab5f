package domain

import (
	"encoding/json"
	"fmt"
)

// Role classifies a Konnex user. It is mutually exclusive: a user id owns a
// document in at most one of the two profile collections, and the role is
// derived from which collection that document lives in. A user who has not
// picked a role yet has no role at all (RoleNone).
type Role string

const (
	RoleNone      Role = ""
	RoleJobSeeker Role = "job-seeker"
	RoleEmployer  Role = "employer"
)

// Valid reports whether r is one of the two assignable roles.
func (r Role) Valid() bool {
	return r == RoleJobSeeker || r == RoleEmployer
}

// Collection returns the profile collection that stores documents for this
// role. Calling it with RoleNone is a programming error.
func (r Role) Collection() string {
	switch r {
	case RoleJobSeeker:
		return CollectionJobSeekerProfiles
	case RoleEmployer:
		return CollectionEmployerProfiles
	}
	return ""
}

// UserIdentity is the identity handle delivered by the authentication stream.
type UserIdentity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// JobSeekerProfile is the profile document shape for job seekers.
type JobSeekerProfile struct {
	FullName  string   `json:"full_name,omitempty"`
	Headline  string   `json:"headline,omitempty"`
	Location  string   `json:"location,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	ResumeURL string   `json:"resume_url,omitempty"`
	Bio       string   `json:"bio,omitempty"`
}

// EmployerProfile is the profile document shape for employers.
type EmployerProfile struct {
	CompanyName string `json:"company_name,omitempty"`
	Website     string `json:"website,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Location    string `json:"location,omitempty"`
	About       string `json:"about,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
}

// Profile is the tagged union of the two profile shapes, discriminated by
// Role. Exactly one of JobSeeker/Employer is non-nil, matching the role; a
// zero Profile (RoleNone, both nil) means "no profile resolved".
type Profile struct {
	Role      Role
	JobSeeker *JobSeekerProfile
	Employer  *EmployerProfile
}

// NewProfile decodes raw profile document data into the variant selected by
// role.
func NewProfile(role Role, data json.RawMessage) (*Profile, error) {
	p := &Profile{Role: role}
	switch role {
	case RoleJobSeeker:
		p.JobSeeker = &JobSeekerProfile{}
		if err := json.Unmarshal(data, p.JobSeeker); err != nil {
			return nil, fmt.Errorf("decode job-seeker profile: %w", err)
		}
	case RoleEmployer:
		p.Employer = &EmployerProfile{}
		if err := json.Unmarshal(data, p.Employer); err != nil {
			return nil, fmt.Errorf("decode employer profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("cannot build profile for role %q", role)
	}
	return p, nil
}

// profileEnvelope is the wire/cache form of Profile.
type profileEnvelope struct {
	Role Role            `json:"role"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes the profile as {"role": ..., "data": {...}} so the
// variant can be recovered on decode.
func (p Profile) MarshalJSON() ([]byte, error) {
	env := profileEnvelope{Role: p.Role}
	var err error
	switch p.Role {
	case RoleJobSeeker:
		env.Data, err = json.Marshal(p.JobSeeker)
	case RoleEmployer:
		env.Data, err = json.Marshal(p.Employer)
	default:
		env.Data = json.RawMessage("null")
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the envelope form produced by MarshalJSON.
func (p *Profile) UnmarshalJSON(b []byte) error {
	var env profileEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	if !env.Role.Valid() {
		*p = Profile{}
		return nil
	}
	decoded, err := NewProfile(env.Role, env.Data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// IdentitySnapshot is the read-only published state of the identity
// resolution provider. Only the provider writes it; everything downstream
// (websocket fan-out, HTTP handlers) observes copies.
//
// IsUserLoading true means role/profile are not yet trustworthy for this
// sign-in event and consumers must not branch on them.
type IdentitySnapshot struct {
	User          *UserIdentity `json:"user"`
	IsUserLoading bool          `json:"is_user_loading"`
	UserError     string        `json:"user_error,omitempty"`
	Role          Role          `json:"role,omitempty"`
	Profile       *Profile      `json:"profile,omitempty"`

	// Generation identifies the sign-in event this snapshot belongs to.
	// It increases monotonically with every auth stream event.
	Generation uint64 `json:"generation"`
}

// SnapshotListener receives every published snapshot. Implementations must
// not block: the provider invokes listeners synchronously under its publish
// path.
type SnapshotListener func(IdentitySnapshot)
