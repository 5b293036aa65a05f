package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/reviews/internal/database"
	"github.com/MarcoPoloResearchLab/reviews/internal/reviews"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type reviewsTestServer struct {
	server  *httptest.Server
	client  *http.Client
	service *reviews.Service
}

func newReviewsTestServer(testContext *testing.T) *reviewsTestServer {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(testContext.TempDir(), "reviews.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	testContext.Cleanup(func() { _ = sqlDB.Close() })

	current := time.Unix(1700000000, 0)
	service, err := reviews.NewService(reviews.ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			current = current.Add(time.Minute)
			return current
		},
	})
	if err != nil {
		testContext.Fatalf("failed to build reviews service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		ReviewsService: service,
		Database:       sqlDB,
		Logger:         zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	testContext.Cleanup(testServer.Close)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &reviewsTestServer{server: testServer, client: client, service: service}
}

func (s *reviewsTestServer) get(testContext *testing.T, path string) (int, string, http.Header) {
	testContext.Helper()
	response, err := s.client.Get(s.server.URL + path)
	if err != nil {
		testContext.Fatalf("GET %s failed: %v", path, err)
	}
	return readResponse(testContext, response)
}

func (s *reviewsTestServer) postForm(testContext *testing.T, path string, form url.Values) (int, string, http.Header) {
	testContext.Helper()
	response, err := s.client.PostForm(s.server.URL+path, form)
	if err != nil {
		testContext.Fatalf("POST %s failed: %v", path, err)
	}
	return readResponse(testContext, response)
}

func readResponse(testContext *testing.T, response *http.Response) (int, string, http.Header) {
	testContext.Helper()
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		testContext.Fatalf("failed to read body: %v", err)
	}
	return response.StatusCode, string(body), response.Header
}

func TestReviewLifecycleOverHTTP(testContext *testing.T) {
	testServer := newReviewsTestServer(testContext)

	status, body, _ := testServer.get(testContext, "/")
	if status != http.StatusOK || !strings.Contains(body, "No reviews yet") {
		testContext.Fatalf("unexpected empty listing: %d %s", status, body)
	}

	status, _, headers := testServer.postForm(testContext, "/", url.Values{"author": {"Alice"}, "text": {"Great!"}})
	if status != http.StatusFound || headers.Get("Location") != "/" {
		testContext.Fatalf("expected redirect after create, got %d %q", status, headers.Get("Location"))
	}

	stored, err := testServer.service.List(context.Background())
	if err != nil || len(stored) != 1 {
		testContext.Fatalf("expected one stored review, got %d (%v)", len(stored), err)
	}
	reviewPath := strconv.FormatInt(stored[0].ID, 10)

	status, body, _ = testServer.get(testContext, "/")
	if status != http.StatusOK || !strings.Contains(body, "Alice") || !strings.Contains(body, "Great!") {
		testContext.Fatalf("listing does not include created review: %s", body)
	}

	status, body, _ = testServer.get(testContext, "/update/"+reviewPath)
	if status != http.StatusOK || !strings.Contains(body, `value="Alice"`) || !strings.Contains(body, "Great!</textarea>") {
		testContext.Fatalf("edit form not pre-filled: %d %s", status, body)
	}

	status, _, _ = testServer.postForm(testContext, "/update/"+reviewPath, url.Values{"author": {"Alice"}, "text": {"Even better!"}})
	if status != http.StatusFound {
		testContext.Fatalf("expected redirect after update, got %d", status)
	}
	stored, _ = testServer.service.List(context.Background())
	if len(stored) != 1 || stored[0].Text != "Even better!" || strconv.FormatInt(stored[0].ID, 10) != reviewPath {
		testContext.Fatalf("unexpected state after update: %#v", stored)
	}

	status, _, headers = testServer.get(testContext, "/delete/"+reviewPath)
	if status != http.StatusFound || headers.Get("Location") != "/" {
		testContext.Fatalf("expected redirect after delete, got %d", status)
	}
	stored, _ = testServer.service.List(context.Background())
	if len(stored) != 0 {
		testContext.Fatalf("expected empty listing after delete, got %d", len(stored))
	}

	for _, path := range []string{"/update/" + reviewPath, "/delete/" + reviewPath} {
		if status, _, _ := testServer.get(testContext, path); status != http.StatusNotFound {
			testContext.Fatalf("GET %s: expected 404 after delete, got %d", path, status)
		}
	}
	if status, _, _ := testServer.postForm(testContext, "/update/"+reviewPath, url.Values{"author": {"x"}, "text": {"y"}}); status != http.StatusNotFound {
		testContext.Fatalf("POST update on deleted review: expected 404, got %d", status)
	}
	stored, _ = testServer.service.List(context.Background())
	if len(stored) != 0 {
		testContext.Fatalf("missing-id requests must not create rows, got %d", len(stored))
	}
}

func TestListingIsNewestFirstRegardlessOfEdits(testContext *testing.T) {
	testServer := newReviewsTestServer(testContext)

	testServer.postForm(testContext, "/", url.Values{"author": {"Older"}, "text": {"first"}})
	testServer.postForm(testContext, "/", url.Values{"author": {"Newer"}, "text": {"second"}})

	stored, _ := testServer.service.List(context.Background())
	olderID := stored[1].ID
	status, _, _ := testServer.postForm(testContext, "/update/"+strconv.FormatInt(olderID, 10), url.Values{"author": {"Older"}, "text": {"edited"}})
	if status != http.StatusFound {
		testContext.Fatalf("expected redirect after update, got %d", status)
	}

	_, body, _ := testServer.get(testContext, "/")
	newerIndex := strings.Index(body, "Newer")
	olderIndex := strings.Index(body, "Older")
	if newerIndex < 0 || olderIndex < 0 || newerIndex > olderIndex {
		testContext.Fatalf("expected newer review before older one in listing: %s", body)
	}
	if !strings.Contains(body, "edited") {
		testContext.Fatalf("expected edited text in listing")
	}
}

func TestListingEscapesReviewContent(testContext *testing.T) {
	testServer := newReviewsTestServer(testContext)

	testServer.postForm(testContext, "/", url.Values{"author": {"<b>Alice</b>"}, "text": {"<script>alert(1)</script>"}})

	_, body, _ := testServer.get(testContext, "/")
	if strings.Contains(body, "<script>alert(1)</script>") {
		testContext.Fatalf("review text must be escaped")
	}
	if !strings.Contains(body, "&lt;b&gt;Alice&lt;/b&gt;") {
		testContext.Fatalf("expected escaped author in listing: %s", body)
	}
}

func TestCreateWithOverlongAuthorReturnsGenericError(testContext *testing.T) {
	testServer := newReviewsTestServer(testContext)

	author := strings.Repeat("a", reviews.MaxAuthorLength+1)
	status, body, headers := testServer.postForm(testContext, "/", url.Values{"author": {author}, "text": {"too long"}})
	if status != http.StatusOK || body != messageCreateFailed {
		testContext.Fatalf("unexpected response: %d %s", status, body)
	}
	if !strings.HasPrefix(headers.Get("Content-Type"), "text/plain") {
		testContext.Fatalf("expected plain text, got %q", headers.Get("Content-Type"))
	}
}

func TestRoutingEdgeCases(testContext *testing.T) {
	testServer := newReviewsTestServer(testContext)

	testCases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "non-numeric-edit", method: http.MethodGet, path: "/update/abc", wantStatus: http.StatusNotFound},
		{name: "negative-delete", method: http.MethodGet, path: "/delete/-1", wantStatus: http.StatusNotFound},
		{name: "unknown-path", method: http.MethodGet, path: "/reviews", wantStatus: http.StatusNotFound},
		{name: "post-delete", method: http.MethodPost, path: "/delete/1", wantStatus: http.StatusMethodNotAllowed},
		{name: "put-index", method: http.MethodPut, path: "/", wantStatus: http.StatusMethodNotAllowed},
		{name: "health", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
	}

	for _, testCase := range testCases {
		testContext.Run(testCase.name, func(testContext *testing.T) {
			request, err := http.NewRequest(testCase.method, testServer.server.URL+testCase.path, http.NoBody)
			if err != nil {
				testContext.Fatalf("failed to build request: %v", err)
			}
			response, err := testServer.client.Do(request)
			if err != nil {
				testContext.Fatalf("request failed: %v", err)
			}
			status, _, _ := readResponse(testContext, response)
			if status != testCase.wantStatus {
				testContext.Fatalf("unexpected status: got %d want %d", status, testCase.wantStatus)
			}
		})
	}
}
