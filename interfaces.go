package learnhub

import (
	"context"
	"io"
)

// TokenStore persists the session token between process runs.
// Implementations: tokenstore/ (memory, cookie file, Redis).
type TokenStore interface {
	// Load returns the persisted token, or ErrNoToken when none is usable.
	Load(ctx context.Context) (string, error)

	// Save persists the token for the store's configured lifetime.
	Save(ctx context.Context, token string) error

	// Delete removes the token. Deleting a missing token is not an error.
	Delete(ctx context.Context) error
}

// Notifier surfaces user-visible outcome messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator moves the user to a named route after a session transition.
type Navigator interface {
	Navigate(route string)
}

// AuthService talks to the backend authentication endpoints.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	LoginWithSocial(ctx context.Context, req SocialAuthRequest) (*AuthResponse, error)
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*AuthResponse, error)

	// Profile returns the user identified by the stored token.
	Profile(ctx context.Context) (*User, error)

	ResetPassword(ctx context.Context, email string) error
	ConfirmResetPassword(ctx context.Context, req ConfirmResetPasswordRequest) error
}

// SessionManager owns the current user and the persisted token.
// Implementation: session/.
type SessionManager interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, req LoginRequest) error
	Register(ctx context.Context, req RegisterRequest) error
	LoginWithSocial(ctx context.Context, req SocialAuthRequest) error
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) error

	// Logout is idempotent and never fails.
	Logout(ctx context.Context)

	// RefreshUser refetches the profile; failure leaves the session intact.
	RefreshUser(ctx context.Context) error

	ResetPassword(ctx context.Context, email string) error
	ConfirmResetPassword(ctx context.Context, req ConfirmResetPasswordRequest) error

	// CurrentUser returns a snapshot of the user, or nil when anonymous.
	CurrentUser() *User

	// Loading reports whether a session transition is in flight.
	Loading() bool
}

// CourseService provides the course catalogue and learner actions.
// Implementation: course/.
type CourseService interface {
	List(ctx context.Context, filters CourseFilters) (*Page[Course], error)
	Get(ctx context.Context, id int64) (*Course, error)
	Sessions(ctx context.Context, courseID int64) ([]CourseSession, error)
	Contents(ctx context.Context, courseID int64) ([]CourseContent, error)
	Enroll(ctx context.Context, sessionID int64) error
	MarkContentCompleted(ctx context.Context, contentID int64) (*LearnerProgress, error)
	Progress(ctx context.Context, courseID int64) (*ProgressStats, error)
	AddFavorite(ctx context.Context, courseID int64) error
	RemoveFavorite(ctx context.Context, courseID int64) error
	Favorites(ctx context.Context) ([]Course, error)
	Categories(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string) ([]Course, error)
}

// UserService manages the authenticated learner's account.
// Implementation: user/.
type UserService interface {
	Profile(ctx context.Context) (*User, error)
	UpdateProfile(ctx context.Context, data UpdateProfileData) (*User, error)
	ChangePassword(ctx context.Context, data ChangePasswordData) error
	UploadAvatar(ctx context.Context, filename string, r io.Reader) (*FileUploadResponse, error)
	Enrollments(ctx context.Context) ([]Enrollment, error)
	Certificates(ctx context.Context) ([]Certificate, error)
	DownloadCertificate(ctx context.Context, certificateID int64) ([]byte, error)
	DeleteAccount(ctx context.Context) error
	ExportData(ctx context.Context) ([]byte, error)
}
