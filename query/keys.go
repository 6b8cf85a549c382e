package query

import (
	"encoding/json"
	"strconv"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/transport"
)

// Key is a structured cache key rooted at a resource type, followed by
// optional scoping identifiers. Two keys address the same entry iff their
// parts are equal.
type Key []string

// String returns the canonical identity of the key. Parts are JSON-quoted
// so no choice of separator can make two distinct keys collide.
func (k Key) String() string {
	b, _ := json.Marshal([]string(k))
	return string(b)
}

// Resource returns the root resource type, or "" for an empty key.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether k lies under prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two keys address the same resource.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// Resource type tags.
const (
	ResourceUser          = "user"
	ResourceCourses       = "courses"
	ResourceEnrollments   = "enrollments"
	ResourceCertificates  = "certificates"
	ResourceQuizzes       = "quizzes"
	ResourceQuizResults   = "quiz-results"
	ResourceVideoSessions = "video-sessions"
	ResourceMessages      = "messages"
	ResourceNotifications = "notifications"
	ResourceProgress      = "progress"
)

// User is the current user's profile.
func User() Key { return Key{ResourceUser} }

// Courses is the root of every course key.
func Courses() Key { return Key{ResourceCourses} }

// Course is a single course.
func Course(courseID int64) Key { return Key{ResourceCourses, id(courseID)} }

// CourseModules lists the contents of a course.
func CourseModules(courseID int64) Key { return Key{ResourceCourses, id(courseID), "modules"} }

// CourseSessions lists the scheduled sessions of a course.
func CourseSessions(courseID int64) Key { return Key{ResourceCourses, id(courseID), "sessions"} }

// CourseList is one filtered page of the catalogue. The filters are encoded
// canonically so equal filters always produce equal keys.
func CourseList(f learnhub.CourseFilters) Key {
	return Key{ResourceCourses, "list", transport.EncodeParams(f.Params()).Encode()}
}

// CourseSearch is a free-text search of the catalogue.
func CourseSearch(q string) Key { return Key{ResourceCourses, "search", q} }

// Favorites lists the current user's favorite courses.
func Favorites() Key { return Key{ResourceCourses, "favorites"} }

// Categories lists catalogue categories.
func Categories() Key { return Key{ResourceCourses, "categories"} }

// Enrollments is the root of every enrollment key.
func Enrollments() Key { return Key{ResourceEnrollments} }

// UserEnrollments lists a user's enrollments.
func UserEnrollments(userID int64) Key { return Key{ResourceEnrollments, "user", id(userID)} }

// Certificates lists a user's certificates.
func Certificates(userID int64) Key { return Key{ResourceCertificates, "user", id(userID)} }

// Quizzes is the root of every quiz key.
func Quizzes() Key { return Key{ResourceQuizzes} }

// Quiz is a single quiz.
func Quiz(quizID int64) Key { return Key{ResourceQuizzes, id(quizID)} }

// QuizResults lists a user's quiz results.
func QuizResults(userID int64) Key { return Key{ResourceQuizResults, id(userID)} }

// VideoSessions is the root of every video session key.
func VideoSessions() Key { return Key{ResourceVideoSessions} }

// UserVideoSessions lists a user's video sessions.
func UserVideoSessions(userID int64) Key { return Key{ResourceVideoSessions, "user", id(userID)} }

// Messages is the root of every message key.
func Messages() Key { return Key{ResourceMessages} }

// Conversation is the message thread with another user.
func Conversation(userID int64) Key { return Key{ResourceMessages, "conversation", id(userID)} }

// Notifications is the root of every notification key.
func Notifications() Key { return Key{ResourceNotifications} }

// UserNotifications lists a user's notifications.
func UserNotifications(userID int64) Key { return Key{ResourceNotifications, "user", id(userID)} }

// Progress is a user's progress in one course.
func Progress(userID, courseID int64) Key { return Key{ResourceProgress, id(userID), id(courseID)} }

// UserProgress is the root of a user's progress across courses.
func UserProgress(userID int64) Key { return Key{ResourceProgress, "user", id(userID)} }
