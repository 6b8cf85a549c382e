package learnhub

import "time"

// User represents the authenticated learner.
type User struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Avatar      string   `json:"avatar,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// FullName returns "First Last", trimmed when either part is missing.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Permissions != nil {
		c.Permissions = append([]string(nil), u.Permissions...)
	}
	return &c
}

// AuthResponse is the payload returned by every credential exchange.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// LoginRequest holds email/password credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest holds the sign-up form.
type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,containsany=abcdefghijklmnopqrstuvwxyz,containsany=ABCDEFGHIJKLMNOPQRSTUVWXYZ,containsany=0123456789"`
	ConfirmPassword string `json:"-" validate:"required,eqfield=Password"`
}

// SocialAuthRequest carries a third-party identity assertion.
type SocialAuthRequest struct {
	Provider    string `json:"provider" validate:"required"`
	AccessToken string `json:"accessToken" validate:"required"`
	IDToken     string `json:"idToken,omitempty"`
}

// VerifyOTPRequest confirms a one-time passcode sent to Email.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// ConfirmResetPasswordRequest completes a password reset.
type ConfirmResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// UpdateProfileData holds editable profile fields. Empty fields are left unchanged by the backend.
type UpdateProfileData struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ChangePasswordData holds a password change.
type ChangePasswordData struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}

// Course is a catalogue entry.
type Course struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Level       string    `json:"level,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Duration    int       `json:"duration,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Instructor  string    `json:"instructor,omitempty"`
	IsFavorite  bool      `json:"isFavorite,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// CourseSession is a scheduled run of a course that learners enroll in.
type CourseSession struct {
	ID       int64     `json:"id"`
	CourseID int64     `json:"courseId"`
	StartsAt time.Time `json:"startDate"`
	EndsAt   time.Time `json:"endDate"`
	Capacity int       `json:"capacity,omitempty"`
	Enrolled int       `json:"enrolledCount,omitempty"`
	Location string    `json:"location,omitempty"`
	IsOnline bool      `json:"isOnline,omitempty"`
}

// CourseContent is a module or lesson inside a course.
type CourseContent struct {
	ID       int64  `json:"id"`
	CourseID int64  `json:"courseId"`
	Title    string `json:"title"`
	Type     string `json:"type,omitempty"`
	URL      string `json:"url,omitempty"`
	Order    int    `json:"order"`
	Duration int    `json:"duration,omitempty"`
}

// CourseFilters narrows a catalogue listing. Zero values are not sent.
type CourseFilters struct {
	Search   string
	Category string
	Level    string
	SortBy   string
	Page     int
	Limit    int
}

// Params returns the filters as flat query parameters.
func (f CourseFilters) Params() map[string]any {
	return map[string]any{
		"search":   f.Search,
		"category": f.Category,
		"level":    f.Level,
		"sortBy":   f.SortBy,
		"page":     f.Page,
		"limit":    f.Limit,
	}
}

// Page is a paginated list response.
type Page[T any] struct {
	Items      []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// Enrollment links a learner to a course session.
type Enrollment struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	SessionID  int64     `json:"sessionId"`
	CourseID   int64     `json:"courseId"`
	Status     string    `json:"status"`
	EnrolledAt time.Time `json:"enrolledAt"`
	Course     *Course   `json:"course,omitempty"`
}

// Certificate is issued when a course is completed.
type Certificate struct {
	ID       int64     `json:"id"`
	CourseID int64     `json:"courseId"`
	Title    string    `json:"title"`
	IssuedAt time.Time `json:"issuedAt"`
	URL      string    `json:"url,omitempty"`
}

// LearnerProgress records completion of one content item.
type LearnerProgress struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	ContentID   int64     `json:"contentId"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

// ProgressStats aggregates a learner's progress in one course.
type ProgressStats struct {
	CourseID          int64   `json:"courseId"`
	TotalContents     int     `json:"totalContents"`
	CompletedContents int     `json:"completedContents"`
	Percentage        float64 `json:"percentage"`
}

// FileUploadResponse describes an uploaded file.
type FileUploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}
