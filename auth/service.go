package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"

	"jobportal/logging"
)

var (
	// ErrMissingField signals that a required input is absent.
	ErrMissingField = errors.New("auth: missing required field")
	// ErrInvalidField signals a present input with an unacceptable value.
	ErrInvalidField = errors.New("auth: invalid field")
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrRoleMismatch signals a correct password with the wrong claimed role.
	ErrRoleMismatch = errors.New("auth: role mismatch")
	// ErrForbidden signals an authenticated user whose role may not perform the operation.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrStorageFailure signals that an attachment could not be stored.
	ErrStorageFailure = errors.New("auth: storage failure")
)

const (
	avatarFolder = "avatars"
	resumeFolder = "resumes"

	defaultPhoneRegion = "IN"
)

// Uploader stores an attachment and returns a durable URL for it.
type Uploader interface {
	Upload(ctx context.Context, folder, filename, contentType string, body []byte) (string, error)
}

// Service handles registration, login and profile changes.
type Service struct {
	repo        Repository
	tokens      *TokenIssuer
	uploads     Uploader
	log         logging.Logger
	phoneRegion string
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPhoneRegion sets the region used to interpret phone numbers written
// without a country code.
func WithPhoneRegion(region string) Option {
	return func(s *Service) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

// LoginResult bundles the token and sanitized user returned after a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      PublicUser
}

// NewService creates a new identity service.
func NewService(repo Repository, tokens *TokenIssuer, uploads Uploader, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		tokens:      tokens,
		uploads:     uploads,
		log:         logging.Nop{},
		phoneRegion: defaultPhoneRegion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns the issuer used for login.
func (s *Service) Tokens() *TokenIssuer { return s.tokens }

// Register creates a new user account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (PublicUser, error) {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.FullName, validation.Required),
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.PhoneNumber, validation.Required),
		validation.Field(&req.Password, validation.Required),
		validation.Field(&req.Role, validation.Required),
	)
	if err != nil {
		return PublicUser{}, fmt.Errorf("%w: %v", ErrMissingField, err)
	}

	err = validation.ValidateStruct(&req,
		validation.Field(&req.Email, is.Email),
		validation.Field(&req.PhoneNumber, validation.By(s.possiblePhone)),
		validation.Field(&req.Role, validation.In(RoleSeeker, RoleRecruiter)),
	)
	if err != nil {
		return PublicUser{}, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	// Advisory only: the unique index decides under concurrency. Checking
	// here avoids uploading an avatar for a request that cannot succeed.
	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return PublicUser{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return PublicUser{}, err
	}

	var photoURL *string
	if req.Avatar != nil {
		url, err := s.store(ctx, avatarFolder, req.Avatar)
		if err != nil {
			return PublicUser{}, err
		}
		photoURL = &url
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return PublicUser{}, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		FullName:        req.FullName,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		PasswordHash:    passwordHash,
		Role:            req.Role,
		ProfilePhotoURL: photoURL,
	})
	if err != nil {
		return PublicUser{}, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return user.Public(), nil
}

// Login authenticates a user and returns a session token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Email, validation.Required),
		validation.Field(&req.Password, validation.Required),
		validation.Field(&req.Role, validation.Required),
	)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrMissingField, err)
	}

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			burnPasswordCheck(req.Password)
			s.log.Warn(ctx, "login failed", "reason", "unknown email")
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if !VerifyPassword(req.Password, user.PasswordHash) {
		s.log.Warn(ctx, "login failed", "user_id", user.ID, "reason", "wrong password")
		return LoginResult{}, ErrInvalidCredentials
	}

	if req.Role != user.Role {
		s.log.Warn(ctx, "login failed", "user_id", user.ID, "reason", "role mismatch")
		return LoginResult{}, ErrRoleMismatch
	}

	token, expiresAt, err := s.tokens.Issue(Claims{UserID: user.ID, FullName: user.FullName})
	if err != nil {
		return LoginResult{}, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Public(),
	}, nil
}

// UpdateProfile merges the present fields of upd into the user's record.
// An empty string counts as absent.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (PublicUser, error) {
	var patch ProfilePatch
	if present(upd.FullName) {
		patch.FullName = upd.FullName
	}
	if present(upd.Email) {
		if err := validation.Validate(*upd.Email, is.Email); err != nil {
			return PublicUser{}, fmt.Errorf("%w: email: %v", ErrInvalidField, err)
		}
		patch.Email = upd.Email
	}
	if present(upd.PhoneNumber) {
		if err := s.possiblePhone(*upd.PhoneNumber); err != nil {
			return PublicUser{}, fmt.Errorf("%w: phoneNumber: %v", ErrInvalidField, err)
		}
		patch.PhoneNumber = upd.PhoneNumber
	}
	if present(upd.Bio) {
		patch.Bio = upd.Bio
	}
	if present(upd.Skills) {
		patch.Skills = ParseSkills(*upd.Skills)
	}

	current, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return PublicUser{}, err
	}

	if upd.Resume != nil {
		url, err := s.store(ctx, resumeFolder, upd.Resume)
		if err != nil {
			return PublicUser{}, err
		}
		name := upd.Resume.Name
		patch.ResumeURL = &url
		patch.ResumeOriginalName = &name
	}

	if patch.Empty() {
		return current.Public(), nil
	}

	updated, err := s.repo.UpdateProfile(ctx, userID, patch)
	if err != nil {
		return PublicUser{}, err
	}

	s.log.Info(ctx, "profile updated", "user_id", updated.ID)
	return updated.Public(), nil
}

// GetUser returns the sanitized user for userID.
func (s *Service) GetUser(ctx context.Context, userID string) (PublicUser, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return PublicUser{}, err
	}
	return user.Public(), nil
}

// RequireRole loads the user and checks that their stored role is one of
// roles.
func (s *Service) RequireRole(ctx context.Context, userID string, roles ...Role) (User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	for _, r := range roles {
		if user.Role == r {
			return user, nil
		}
	}
	return User{}, ErrForbidden
}

func (s *Service) store(ctx context.Context, folder string, f *File) (string, error) {
	if s.uploads == nil {
		return "", fmt.Errorf("%w: no uploader configured", ErrStorageFailure)
	}
	url, err := s.uploads.Upload(ctx, folder, f.Name, f.ContentType, f.Data)
	if err != nil {
		s.log.Error(ctx, "upload failed", "folder", folder, "error", err)
		return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return url, nil
}

func (s *Service) possiblePhone(value any) error {
	raw, _ := value.(string)
	num, err := phonenumbers.Parse(raw, s.phoneRegion)
	if err != nil {
		return errors.New("must be a valid phone number")
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

func present(v *string) bool {
	return v != nil && *v != ""
}
