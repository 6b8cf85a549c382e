package course

import (
	"context"
	"fmt"
	"net/url"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/transport"
)

// HTTPBackend implements Backend over the REST API.
type HTTPBackend struct {
	client *transport.Client
}

// compile-time check
var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a Backend that talks to the API through client.
func NewHTTPBackend(client *transport.Client) *HTTPBackend {
	return &HTTPBackend{client: client}
}

func (b *HTTPBackend) List(ctx context.Context, filters learnhub.CourseFilters) (*learnhub.Page[learnhub.Course], error) {
	req := transport.Get("/courses", transport.EncodeParams(filters.Params()))
	return transport.Call[*learnhub.Page[learnhub.Course]](ctx, b.client, req).Unwrap()
}

func (b *HTTPBackend) Get(ctx context.Context, id int64) (*learnhub.Course, error) {
	return transport.Call[*learnhub.Course](ctx, b.client, transport.Get(fmt.Sprintf("/courses/%d", id), nil)).Unwrap()
}

func (b *HTTPBackend) Sessions(ctx context.Context, courseID int64) ([]learnhub.CourseSession, error) {
	req := transport.Get(fmt.Sprintf("/courses/%d/sessions", courseID), nil)
	return transport.Call[[]learnhub.CourseSession](ctx, b.client, req).Unwrap()
}

func (b *HTTPBackend) Contents(ctx context.Context, courseID int64) ([]learnhub.CourseContent, error) {
	req := transport.Get(fmt.Sprintf("/courses/%d/contents", courseID), nil)
	return transport.Call[[]learnhub.CourseContent](ctx, b.client, req).Unwrap()
}

func (b *HTTPBackend) Enroll(ctx context.Context, sessionID int64) error {
	return transport.Exec(ctx, b.client, transport.Post(fmt.Sprintf("/courses/sessions/%d/enroll", sessionID), nil))
}

func (b *HTTPBackend) MarkContentCompleted(ctx context.Context, contentID int64) (*learnhub.LearnerProgress, error) {
	req := transport.Post(fmt.Sprintf("/courses/contents/%d/complete", contentID), nil)
	return transport.Call[*learnhub.LearnerProgress](ctx, b.client, req).Unwrap()
}

func (b *HTTPBackend) Progress(ctx context.Context, courseID int64) (*learnhub.ProgressStats, error) {
	req := transport.Get(fmt.Sprintf("/courses/%d/progress", courseID), nil)
	return transport.Call[*learnhub.ProgressStats](ctx, b.client, req).Unwrap()
}

func (b *HTTPBackend) AddFavorite(ctx context.Context, courseID int64) error {
	return transport.Exec(ctx, b.client, transport.Post(fmt.Sprintf("/courses/%d/favorite", courseID), nil))
}

func (b *HTTPBackend) RemoveFavorite(ctx context.Context, courseID int64) error {
	return transport.Exec(ctx, b.client, transport.Delete(fmt.Sprintf("/courses/%d/favorite", courseID)))
}

func (b *HTTPBackend) Favorites(ctx context.Context) ([]learnhub.Course, error) {
	return transport.Call[[]learnhub.Course](ctx, b.client, transport.Get("/courses/favorites", nil)).Unwrap()
}

func (b *HTTPBackend) Categories(ctx context.Context) ([]string, error) {
	return transport.Call[[]string](ctx, b.client, transport.Get("/courses/categories", nil)).Unwrap()
}

func (b *HTTPBackend) Search(ctx context.Context, q string) ([]learnhub.Course, error) {
	req := transport.Get("/courses/search", url.Values{"q": {q}})
	return transport.Call[[]learnhub.Course](ctx, b.client, req).Unwrap()
}
