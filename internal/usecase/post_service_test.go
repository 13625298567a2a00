package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain/mocks"
)

var testNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestPostService(repo *mocks.MockPostRepository) (*PostService, *mocks.MockIdentityProvider) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idp := &mocks.MockIdentityProvider{Roles: map[string]domain.RoleSet{
		"alice": {domain.RoleUser},
		"bob":   {domain.RoleUser},
		"admin": {domain.RoleAdmin},
		"ghost": {domain.RoleGuest},
	}}
	svc := NewPostService(repo, idp, logger)
	svc.now = func() time.Time { return testNow }
	return svc, idp
}

func seedPosts() []domain.Post {
	return []domain.Post{
		{ID: 1, Title: "John Doe's First Post", Content: "content one", Author: "John", PublishedAt: testNow.Add(-3 * time.Hour), UserID: "alice"},
		{ID: 2, Title: "Unrelated", Content: "content two", Author: "Bob", PublishedAt: testNow.Add(-2 * time.Hour), UserID: "bob"},
		{ID: 3, Title: "Latest news", Content: "content three", Author: "Alice", PublishedAt: testNow.Add(-1 * time.Hour), UserID: "alice"},
	}
}

func assertCode(t *testing.T, err error, want domain.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := domain.CodeOf(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestPostService_ListAll(t *testing.T) {
	ctx := context.Background()

	t.Run("Newest First With Permissions", func(t *testing.T) {
		svc, _ := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))
		views, err := svc.ListAll(ctx, "alice")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(views) != 3 {
			t.Fatalf("expected 3 posts, got %d", len(views))
		}
		if views[0].ID != 3 || views[2].ID != 1 {
			t.Errorf("unexpected order: %d, %d, %d", views[0].ID, views[1].ID, views[2].ID)
		}
		if !views[0].CanEdit || views[1].CanEdit {
			t.Errorf("alice should edit only her own posts: %+v", views)
		}
	})

	t.Run("Empty Store", func(t *testing.T) {
		svc, _ := newTestPostService(mocks.NewMockPostRepository())
		views, err := svc.ListAll(ctx, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(views) != 0 {
			t.Errorf("expected no posts, got %d", len(views))
		}
	})

	t.Run("Guest Does Not Hit Identity Provider", func(t *testing.T) {
		svc, idp := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))
		views, _ := svc.ListAll(ctx, "")
		for _, v := range views {
			if v.CanEdit || v.CanDelete {
				t.Errorf("guest should have no write permissions on post %d", v.ID)
			}
		}
		if idp.Calls != 0 {
			t.Errorf("expected no role lookups for a guest, got %d", idp.Calls)
		}
	})

	t.Run("Store Failure Passes Through", func(t *testing.T) {
		repo := mocks.NewMockPostRepository()
		repo.ListErr = domain.Internal("database unavailable")
		svc, _ := newTestPostService(repo)
		_, err := svc.ListAll(ctx, "")
		assertCode(t, err, domain.CodeInternal)
		if domain.AsError(err).Message != "database unavailable" {
			t.Errorf("store message should be forwarded, got %q", domain.AsError(err).Message)
		}
	})
}

func TestPostService_GetByID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))

	t.Run("Found", func(t *testing.T) {
		v, err := svc.GetByID(ctx, 2, "admin")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v.Title != "Unrelated" || !v.CanEdit || !v.CanDelete {
			t.Errorf("unexpected view: %+v", v)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := svc.GetByID(ctx, 99, "")
		assertCode(t, err, domain.CodeNotFound)
	})

	for _, id := range []int64{0, -1} {
		_, err := svc.GetByID(ctx, id, "")
		assertCode(t, err, domain.CodeValidation)
	}
}

func TestPostService_SearchByTitle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))

	for _, term := range []string{"doe", "DOE"} {
		views, err := svc.SearchByTitle(ctx, term, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(views) != 1 || views[0].Title != "John Doe's First Post" {
			t.Errorf("search %q returned %+v", term, views)
		}
	}

	views, err := svc.SearchByTitle(ctx, "   ", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(views) != 3 {
		t.Errorf("blank term should return every post, got %d", len(views))
	}

	_, err = svc.SearchByTitle(ctx, strings.Repeat("x", 101), "")
	assertCode(t, err, domain.CodeValidation)
}

func TestPostService_ListByUserAndRecent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))

	mine, err := svc.ListByUser(ctx, "alice", "alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(mine) != 2 || mine[0].ID != 3 || mine[1].ID != 1 {
		t.Errorf("unexpected posts for alice: %+v", mine)
	}
	_, err = svc.ListByUser(ctx, " ", "alice")
	assertCode(t, err, domain.CodeValidation)

	recent, err := svc.ListRecent(ctx, 2, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(recent) != 2 || recent[0].ID != 3 || recent[1].ID != 2 {
		t.Errorf("expected posts 3 and 2, got %+v", recent)
	}
	for _, n := range []int{0, -5} {
		_, err = svc.ListRecent(ctx, n, "")
		assertCode(t, err, domain.CodeValidation)
	}

	n, err := svc.CountByUser(ctx, "alice")
	if err != nil || n != 2 {
		t.Errorf("CountByUser = (%d, %v), want (2, nil)", n, err)
	}
	_, err = svc.CountByUser(ctx, "")
	assertCode(t, err, domain.CodeValidation)
}

func TestPostService_Create(t *testing.T) {
	ctx := context.Background()
	in := domain.PostInput{Title: "  Hello  ", Content: "A body that is long enough", Author: "Alice"}

	t.Run("Success", func(t *testing.T) {
		repo := mocks.NewMockPostRepository()
		svc, _ := newTestPostService(repo)
		v, err := svc.Create(ctx, in, "alice")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if v.ID == 0 || v.UserID != "alice" || !v.PublishedAt.Equal(testNow) || v.Title != "Hello" {
			t.Errorf("unexpected created post: %+v", v.Post)
		}
		if !v.CanEdit || !v.CanDelete {
			t.Error("owner should be able to edit and delete the new post")
		}
		if repo.Writes() != 1 {
			t.Errorf("expected exactly one write, got %d", repo.Writes())
		}
	})

	tests := []struct {
		name   string
		in     domain.PostInput
		caller string
		code   domain.ErrorCode
	}{
		{"Guest", in, "", domain.CodeUnauthorized},
		{"Empty Title", domain.PostInput{Content: in.Content, Author: in.Author}, "alice", domain.CodeValidation},
		{"Title Too Long", domain.PostInput{Title: strings.Repeat("t", 201), Content: in.Content, Author: in.Author}, "alice", domain.CodeValidation},
		{"No Member Role", in, "ghost", domain.CodeForbidden},
		{"Unknown Caller", in, "nobody", domain.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockPostRepository()
			svc, _ := newTestPostService(repo)
			_, err := svc.Create(ctx, tt.in, tt.caller)
			assertCode(t, err, tt.code)
			if repo.Writes() != 0 {
				t.Errorf("expected no writes, got %d", repo.Writes())
			}
		})
	}

	t.Run("Title Exactly 200", func(t *testing.T) {
		svc, _ := newTestPostService(mocks.NewMockPostRepository())
		_, err := svc.Create(ctx, domain.PostInput{Title: strings.Repeat("t", 200), Content: in.Content, Author: in.Author}, "alice")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestPostService_Update(t *testing.T) {
	ctx := context.Background()
	fields := domain.PostInput{Title: "New title", Content: "Brand new content", Author: "Someone"}

	t.Run("Owner Keeps Owner And Timestamp", func(t *testing.T) {
		repo := mocks.NewMockPostRepository(seedPosts()...)
		svc, _ := newTestPostService(repo)
		orig := repo.Posts[1]
		v, err := svc.Update(ctx, domain.UpdatePostInput{ID: 1, PostInput: fields}, "alice")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stored := repo.Posts[1]
		if stored.UserID != orig.UserID || !stored.PublishedAt.Equal(orig.PublishedAt) {
			t.Errorf("owner or timestamp changed: %+v", stored)
		}
		if v.Title != "New title" || stored.Title != "New title" {
			t.Errorf("title not updated: view=%q stored=%q", v.Title, stored.Title)
		}
	})

	t.Run("Admin Edits Any", func(t *testing.T) {
		repo := mocks.NewMockPostRepository(seedPosts()...)
		svc, _ := newTestPostService(repo)
		if _, err := svc.Update(ctx, domain.UpdatePostInput{ID: 2, PostInput: fields}, "admin"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if repo.Posts[2].UserID != "bob" {
			t.Error("admin edit must not reassign the owner")
		}
	})

	tests := []struct {
		name   string
		in     domain.UpdatePostInput
		caller string
		code   domain.ErrorCode
	}{
		{"Invalid ID", domain.UpdatePostInput{ID: 0, PostInput: fields}, "alice", domain.CodeValidation},
		{"Invalid Fields", domain.UpdatePostInput{ID: 1, PostInput: domain.PostInput{Title: "x"}}, "alice", domain.CodeValidation},
		{"Missing", domain.UpdatePostInput{ID: 42, PostInput: fields}, "alice", domain.CodeNotFound},
		{"Not Owner", domain.UpdatePostInput{ID: 2, PostInput: fields}, "alice", domain.CodeForbidden},
		{"Guest", domain.UpdatePostInput{ID: 1, PostInput: fields}, "", domain.CodeForbidden},
		{"Caller Without Member Role", domain.UpdatePostInput{ID: 1, PostInput: fields}, "ghost", domain.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockPostRepository(seedPosts()...)
			svc, _ := newTestPostService(repo)
			_, err := svc.Update(ctx, tt.in, tt.caller)
			assertCode(t, err, tt.code)
			if repo.Writes() != 0 {
				t.Errorf("expected no writes, got %d", repo.Writes())
			}
		})
	}
}

func TestPostService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Owner Deletes", func(t *testing.T) {
		repo := mocks.NewMockPostRepository(seedPosts()...)
		svc, _ := newTestPostService(repo)
		if err := svc.Delete(ctx, 1, "alice"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, ok := repo.Posts[1]; ok {
			t.Error("post should be removed")
		}
	})

	t.Run("Nonexistent", func(t *testing.T) {
		svc, _ := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))
		err := svc.Delete(ctx, 404, "admin")
		assertCode(t, err, domain.CodeNotFound)
	})

	t.Run("Forbidden", func(t *testing.T) {
		repo := mocks.NewMockPostRepository(seedPosts()...)
		svc, _ := newTestPostService(repo)
		err := svc.Delete(ctx, 2, "alice")
		assertCode(t, err, domain.CodeForbidden)
		if repo.Writes() != 0 {
			t.Error("forbidden delete must not write")
		}
	})

	t.Run("Store Failure Passes Through", func(t *testing.T) {
		repo := mocks.NewMockPostRepository(seedPosts()...)
		repo.DeleteErr = domain.Internal("No changes were saved to the database")
		svc, _ := newTestPostService(repo)
		err := svc.Delete(ctx, 1, "alice")
		if !errors.Is(err, domain.ErrInternal) {
			t.Fatalf("expected internal error, got %v", err)
		}
	})

	t.Run("Update After Delete", func(t *testing.T) {
		repo := mocks.NewMockPostRepository(seedPosts()...)
		svc, _ := newTestPostService(repo)
		if err := svc.Delete(ctx, 3, "admin"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		_, err := svc.Update(ctx, domain.UpdatePostInput{ID: 3, PostInput: domain.PostInput{Title: "t", Content: "0123456789", Author: "a"}}, "alice")
		assertCode(t, err, domain.CodeNotFound)
	})
}

func TestPostService_Probes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))

	tests := []struct {
		id     int64
		caller string
		want   bool
	}{
		{1, "alice", true},
		{2, "alice", false},
		{2, "admin", true},
		{1, "", false},
	}
	for _, tt := range tests {
		edit, err := svc.CanEdit(ctx, tt.id, tt.caller)
		if err != nil {
			t.Fatalf("CanEdit: unexpected error %v", err)
		}
		del, err := svc.CanDelete(ctx, tt.id, tt.caller)
		if err != nil {
			t.Fatalf("CanDelete: unexpected error %v", err)
		}
		if edit != tt.want || del != tt.want {
			t.Errorf("probe(%d, %q) = (%v, %v), want %v", tt.id, tt.caller, edit, del, tt.want)
		}
	}

	_, err := svc.CanEdit(ctx, 77, "alice")
	assertCode(t, err, domain.CodeNotFound)
}

func TestPostService_IdentityFailure(t *testing.T) {
	repo := mocks.NewMockPostRepository(seedPosts()...)
	svc, idp := newTestPostService(repo)
	idp.Err = domain.Internal("identity store unavailable")

	_, err := svc.GetByID(context.Background(), 1, "alice")
	assertCode(t, err, domain.CodeInternal)
}

// oldestFirstRepository returns listings in the reverse of the documented store order.
type oldestFirstRepository struct {
	*mocks.MockPostRepository
}

func reversed(posts []domain.Post, err error) ([]domain.Post, error) {
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	return posts, err
}

func (r oldestFirstRepository) GetAll(ctx context.Context) ([]domain.Post, error) {
	return reversed(r.MockPostRepository.GetAll(ctx))
}

func (r oldestFirstRepository) List(ctx context.Context, f domain.PostFilter) ([]domain.Post, error) {
	return reversed(r.MockPostRepository.List(ctx, f))
}

func TestPostService_OrdersListingsNewestFirst(t *testing.T) {
	ctx := context.Background()
	posts := append(seedPosts(),
		// Same timestamp as post 3: the higher id comes first.
		domain.Post{ID: 4, Title: "Tied news", Content: "content four", Author: "Bob", PublishedAt: testNow.Add(-1 * time.Hour), UserID: "bob"},
	)
	repo := oldestFirstRepository{mocks.NewMockPostRepository(posts...)}
	svc := NewPostService(repo, &mocks.MockIdentityProvider{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ids := func(views []domain.PostView) []int64 {
		out := make([]int64, len(views))
		for i, v := range views {
			out[i] = v.ID
		}
		return out
	}
	want := []int64{4, 3, 2, 1}

	all, err := svc.ListAll(ctx, "")
	if err != nil {
		t.Fatalf("ListAll: unexpected error %v", err)
	}
	if got := ids(all); !slices.Equal(got, want) {
		t.Errorf("ListAll order = %v, want %v", got, want)
	}

	found, err := svc.SearchByTitle(ctx, "NEWS", "")
	if err != nil {
		t.Fatalf("SearchByTitle: unexpected error %v", err)
	}
	if got := ids(found); !slices.Equal(got, []int64{4, 3}) {
		t.Errorf("SearchByTitle order = %v, want [4 3]", got)
	}

	mine, err := svc.ListByUser(ctx, "alice", "alice")
	if err != nil {
		t.Fatalf("ListByUser: unexpected error %v", err)
	}
	if got := ids(mine); !slices.Equal(got, []int64{3, 1}) {
		t.Errorf("ListByUser order = %v, want [3 1]", got)
	}
}

// spanRecorder is a tracer provider that keeps the names of started spans.
type spanRecorder struct {
	noop.TracerProvider
	mu    sync.Mutex
	names []string
}

type recordingTracer struct {
	noop.Tracer
	rec *spanRecorder
}

func (p *spanRecorder) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return recordingTracer{rec: p}
}

func (t recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.rec.mu.Lock()
	t.rec.names = append(t.rec.names, name)
	t.rec.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

func TestPostService_SpanNames(t *testing.T) {
	rec := &spanRecorder{}
	otel.SetTracerProvider(rec)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	ctx := context.Background()
	svc, _ := newTestPostService(mocks.NewMockPostRepository(seedPosts()...))
	if _, err := svc.ListAll(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CanEdit(ctx, 1, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CanDelete(ctx, 1, "alice"); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"ListAll", "CanEdit", "CanDelete"}
	if !slices.Equal(rec.names, want) {
		t.Errorf("span names = %v, want %v", rec.names, want)
	}
}
