// Package course provides the CourseService implementation.
//
// Reads go through a query.Cache under the shared key taxonomy; writes are
// attempted once and invalidate the entries they affect.
package course

import (
	"context"
	"fmt"
	"strings"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/query"
)

// Backend defines the contract for pluggable course backends.
type Backend interface {
	List(ctx context.Context, filters learnhub.CourseFilters) (*learnhub.Page[learnhub.Course], error)
	Get(ctx context.Context, id int64) (*learnhub.Course, error)
	Sessions(ctx context.Context, courseID int64) ([]learnhub.CourseSession, error)
	Contents(ctx context.Context, courseID int64) ([]learnhub.CourseContent, error)
	Enroll(ctx context.Context, sessionID int64) error
	MarkContentCompleted(ctx context.Context, contentID int64) (*learnhub.LearnerProgress, error)
	Progress(ctx context.Context, courseID int64) (*learnhub.ProgressStats, error)
	AddFavorite(ctx context.Context, courseID int64) error
	RemoveFavorite(ctx context.Context, courseID int64) error
	Favorites(ctx context.Context) ([]learnhub.Course, error)
	Categories(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string) ([]learnhub.Course, error)
}

// Service implements learnhub.CourseService with a configurable backend.
type Service struct {
	backend Backend
	cache   *query.Cache
}

// compile-time check
var _ learnhub.CourseService = (*Service)(nil)

// New creates a new CourseService. Reads are cached in cache.
func New(backend Backend, cache *query.Cache) *Service {
	return &Service{backend: backend, cache: cache}
}

// List returns one page of the catalogue.
func (s *Service) List(ctx context.Context, filters learnhub.CourseFilters) (*learnhub.Page[learnhub.Course], error) {
	return wrap(query.Fetch(ctx, s.cache, query.CourseList(filters), func(ctx context.Context) (*learnhub.Page[learnhub.Course], error) {
		return s.backend.List(ctx, filters)
	}))
}

// Get returns a single course.
func (s *Service) Get(ctx context.Context, id int64) (*learnhub.Course, error) {
	if err := requireID("course id", id); err != nil {
		return nil, err
	}
	return wrap(query.Fetch(ctx, s.cache, query.Course(id), func(ctx context.Context) (*learnhub.Course, error) {
		return s.backend.Get(ctx, id)
	}))
}

// Sessions lists the scheduled sessions of a course.
func (s *Service) Sessions(ctx context.Context, courseID int64) ([]learnhub.CourseSession, error) {
	if err := requireID("course id", courseID); err != nil {
		return nil, err
	}
	return wrap(query.Fetch(ctx, s.cache, query.CourseSessions(courseID), func(ctx context.Context) ([]learnhub.CourseSession, error) {
		return s.backend.Sessions(ctx, courseID)
	}))
}

// Contents lists the modules of a course.
func (s *Service) Contents(ctx context.Context, courseID int64) ([]learnhub.CourseContent, error) {
	if err := requireID("course id", courseID); err != nil {
		return nil, err
	}
	return wrap(query.Fetch(ctx, s.cache, query.CourseModules(courseID), func(ctx context.Context) ([]learnhub.CourseContent, error) {
		return s.backend.Contents(ctx, courseID)
	}))
}

// Enroll registers the learner for a course session.
func (s *Service) Enroll(ctx context.Context, sessionID int64) error {
	if err := requireID("session id", sessionID); err != nil {
		return err
	}
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.Enroll(ctx, sessionID)
	}, query.Invalidates(query.Enrollments(), query.Courses()))
	return wrapErr(err)
}

// MarkContentCompleted records completion of one content item.
func (s *Service) MarkContentCompleted(ctx context.Context, contentID int64) (*learnhub.LearnerProgress, error) {
	if err := requireID("content id", contentID); err != nil {
		return nil, err
	}
	return wrap(query.Mutate(ctx, s.cache, func(ctx context.Context) (*learnhub.LearnerProgress, error) {
		return s.backend.MarkContentCompleted(ctx, contentID)
	}, query.Invalidates(query.Key{query.ResourceProgress}, query.Key{query.ResourceCertificates})))
}

// Progress returns the learner's progress in a course. It is cached per
// learner when the context carries the user ID.
func (s *Service) Progress(ctx context.Context, courseID int64) (*learnhub.ProgressStats, error) {
	if err := requireID("course id", courseID); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) (*learnhub.ProgressStats, error) {
		return s.backend.Progress(ctx, courseID)
	}
	uid, ok := learnhub.UserIDFromContext(ctx)
	if !ok {
		return wrap(fetch(ctx))
	}
	return wrap(query.Fetch(ctx, s.cache, query.Progress(uid, courseID), fetch))
}

// AddFavorite marks a course as favorite.
func (s *Service) AddFavorite(ctx context.Context, courseID int64) error {
	if err := requireID("course id", courseID); err != nil {
		return err
	}
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.AddFavorite(ctx, courseID)
	}, query.Invalidates(query.Favorites(), query.Course(courseID)))
	return wrapErr(err)
}

// RemoveFavorite unmarks a favorite course.
func (s *Service) RemoveFavorite(ctx context.Context, courseID int64) error {
	if err := requireID("course id", courseID); err != nil {
		return err
	}
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.RemoveFavorite(ctx, courseID)
	}, query.Invalidates(query.Favorites(), query.Course(courseID)))
	return wrapErr(err)
}

// Favorites lists the learner's favorite courses.
func (s *Service) Favorites(ctx context.Context) ([]learnhub.Course, error) {
	return wrap(query.Fetch(ctx, s.cache, query.Favorites(), s.backend.Favorites))
}

// Categories lists catalogue categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return wrap(query.Fetch(ctx, s.cache, query.Categories(), s.backend.Categories))
}

// Search runs a free-text search of the catalogue.
func (s *Service) Search(ctx context.Context, q string) ([]learnhub.Course, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, &learnhub.Error{Kind: learnhub.KindInvalid, Message: "search query cannot be empty"}
	}
	return wrap(query.Fetch(ctx, s.cache, query.CourseSearch(q), func(ctx context.Context) ([]learnhub.Course, error) {
		return s.backend.Search(ctx, q)
	}))
}

func requireID(name string, id int64) error {
	if id <= 0 {
		return &learnhub.Error{Kind: learnhub.KindInvalid, Message: name + " must be positive"}
	}
	return nil
}

func wrap[T any](v T, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, fmt.Errorf("learnhub/course: %w", err)
	}
	return v, nil
}

func wrapErr(err error) error {
	if err != nil {
		return fmt.Errorf("learnhub/course: %w", err)
	}
	return nil
}
