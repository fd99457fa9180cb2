package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-gamesocial-backend/internal/auth"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/docstore/sqlstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
	"github.com/tbourn/go-gamesocial-backend/internal/repo"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

// testUserHeader names the caller in tests, in place of a bearer token.
const testUserHeader = "X-Test-User"

type fixture struct {
	r  *gin.Engine
	st *sqlstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := sqlstore.OpenMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	id := auth.ContextProvider{}
	graph := &services.GraphService{Store: st, Identity: id}
	fanout := &services.FanoutService{Store: st, Followers: graph}
	h := New(
		&services.UserService{Store: st, Identity: id},
		graph,
		&services.StatusService{Store: st, Identity: id, Fanout: fanout},
		&services.InboxService{Store: st, Identity: id, Cap: 2},
		&services.FeedService{Store: st},
		&services.CommentService{Store: st, Identity: id},
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid := c.GetHeader(testUserHeader); uid != "" {
			c.Request = c.Request.WithContext(auth.WithCaller(c.Request.Context(), domain.Caller{UserID: uid, DisplayName: "name-" + uid}))
		}
		c.Next()
	})
	r.POST("/users/me", h.EnsureProfile)
	r.PUT("/users/me/username", h.RenameUser)
	r.GET("/users/search", h.SearchUsers)
	r.GET("/users/:id", h.GetUser)
	r.POST("/users/:id/follow", h.Follow)
	r.DELETE("/users/:id/follow", h.Unfollow)
	r.GET("/users/:id/followers", h.ListFollowers)
	r.GET("/users/:id/following", h.ListFollowing)
	r.GET("/users/:id/follow-status", h.FollowStatus)
	r.PUT("/users/me/status/:kind/:gameId", h.AddStatus)
	r.DELETE("/users/me/status/:kind/:gameId", h.RemoveStatus)
	r.POST("/users/me/status/:kind/toggle", h.ToggleStatus)
	r.GET("/users/me/status/:kind/:gameId", h.ContainsStatus)
	r.GET("/users/:id/status/:kind", h.ListStatus)
	r.GET("/users/:id/status/:kind/ws", h.ObserveStatus)
	r.GET("/users/me/notifications", h.ListNotifications)
	r.DELETE("/users/me/notifications", h.PruneNotifications)
	r.GET("/users/me/feed", h.GetFeed)
	r.GET("/users/:id/activity.atom", h.ActivityAtom)
	r.GET("/games/:id/comments", h.ListComments)
	r.POST("/games/:id/comments", h.CreateComment)
	r.GET("/games/:id/comments/:commentId", h.GetComment)
	r.PUT("/games/:id/comments/:commentId", h.EditComment)
	r.DELETE("/games/:id/comments/:commentId", h.DeleteComment)
	r.POST("/games/:id/comments/:commentId/like", h.LikeComment)
	r.GET("/games/:id/comments/:commentId/replies", h.ListReplies)
	r.POST("/games/:id/comments/:commentId/replies", h.CreateReply)
	r.DELETE("/games/:id/comments/:commentId/replies/:replyId", h.DeleteReply)

	return &fixture{r: r, st: st}
}

func (f *fixture) seedUser(t *testing.T, id, username string) {
	t.Helper()
	if err := repo.PutUser(context.Background(), f.st, domain.UserIdentity{ID: id, Username: username, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func (f *fixture) do(method, path, uid, body string, hdr ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(testUserHeader, uid)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, w).Code
}

//
// Users
//

func TestUsers_ProfileRenameAndSearch(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodPost, "/users/me", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous ensure = %d", w.Code)
	}
	w := f.do(http.MethodPost, "/users/me", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("ensure = %d %s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodPut, "/users/me/username", "u1", `{"username":"alice"}`)
	if w.Code != http.StatusOK || decode[domain.UserIdentity](t, w).Username != "alice" {
		t.Fatalf("rename = %d %s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodPut, "/users/me/username", "u1", `{"username":"   "}`)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidUsername {
		t.Fatalf("blank rename = %d %s", w.Code, w.Body.String())
	}

	if w := f.do(http.MethodGet, "/users/me", "u1", ""); w.Code != http.StatusOK || decode[domain.UserIdentity](t, w).ID != "u1" {
		t.Fatalf("get me = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodGet, "/users/me", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous get me = %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/users/ghost", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing user = %d", w.Code)
	}

	if w := f.do(http.MethodGet, "/users/search", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("search without q = %d", w.Code)
	}
	w = f.do(http.MethodGet, "/users/search?q=ali", "", "")
	if got := decode[[]domain.UserIdentity](t, w); len(got) != 1 || got[0].ID != "u1" {
		t.Fatalf("search = %s", w.Body.String())
	}
}

//
// Follows
//

func TestFollows_FollowListStatusAndErrors(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "a", "alice")
	f.seedUser(t, "b", "bob")

	if w := f.do(http.MethodPost, "/users/a/follow", "a", ""); w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeSelfFollow {
		t.Fatalf("self follow = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPost, "/users/ghost/follow", "a", ""); w.Code != http.StatusNotFound {
		t.Fatalf("follow missing = %d", w.Code)
	}
	for i := 0; i < 2; i++ {
		if w := f.do(http.MethodPost, "/users/b/follow", "a", ""); w.Code != http.StatusNoContent {
			t.Fatalf("follow #%d = %d %s", i, w.Code, w.Body.String())
		}
	}

	w := f.do(http.MethodGet, "/users/b/followers", "", "")
	fl := decode[FollowListResponse](t, w)
	if fl.Count != 1 || fl.Users[0].ID != "a" || fl.Users[0].Username != "alice" {
		t.Fatalf("followers = %s", w.Body.String())
	}
	w = f.do(http.MethodGet, "/users/a/following", "", "")
	if decode[FollowListResponse](t, w).Count != 1 {
		t.Fatalf("following = %s", w.Body.String())
	}

	w = f.do(http.MethodGet, "/users/b/follow-status", "a", "")
	fs := decode[FollowStatusResponse](t, w)
	if fs.Followers != 1 || fs.Following != 0 || fs.IFollow == nil || !*fs.IFollow || fs.FollowsMe == nil || *fs.FollowsMe {
		t.Fatalf("follow-status = %s", w.Body.String())
	}
	// anonymous callers get counts only
	w = f.do(http.MethodGet, "/users/b/follow-status", "", "")
	if fs := decode[FollowStatusResponse](t, w); fs.IFollow != nil || fs.FollowsMe != nil {
		t.Fatalf("anonymous follow-status = %s", w.Body.String())
	}

	if w := f.do(http.MethodDelete, "/users/b/follow", "a", ""); w.Code != http.StatusNoContent {
		t.Fatalf("unfollow = %d", w.Code)
	}
	if decode[FollowListResponse](t, f.do(http.MethodGet, "/users/b/followers", "", "")).Count != 0 {
		t.Fatalf("followers not empty after unfollow")
	}
}

//
// Status collections
//

func TestStatus_AddListETagContainsRemove(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPut, "/users/me/status/played/1942", "a", `{"name":"Hades"}`)
	if w.Code != http.StatusOK || decode[domain.StatusEntry](t, w).Name != "Hades" {
		t.Fatalf("add = %d %s", w.Code, w.Body.String())
	}
	// body is optional
	if w := f.do(http.MethodPut, "/users/me/status/wishlist/77", "a", ""); w.Code != http.StatusOK {
		t.Fatalf("add without body = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPut, "/users/me/status/owned/1", "a", ""); w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeUnknownStatus {
		t.Fatalf("unknown kind = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(http.MethodPut, "/users/me/status/played/1", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous add = %d", w.Code)
	}

	w = f.do(http.MethodGet, "/users/a/status/played", "", "")
	if w.Code != http.StatusOK || len(decode[[]domain.StatusEntry](t, w)) != 1 {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"status:a:played:`) {
		t.Fatalf("etag = %q", etag)
	}
	if w := f.do(http.MethodGet, "/users/a/status/played", "", "", "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("conditional list = %d", w.Code)
	}

	w = f.do(http.MethodGet, "/users/me/status/played/1942", "a", "")
	if c := decode[ContainsResponse](t, w); !c.Member {
		t.Fatalf("contains = %s", w.Body.String())
	}
	if w := f.do(http.MethodDelete, "/users/me/status/played/1942", "a", ""); w.Code != http.StatusNoContent {
		t.Fatalf("remove = %d", w.Code)
	}
	w = f.do(http.MethodGet, "/users/me/status/played/1942", "a", "")
	if c := decode[ContainsResponse](t, w); c.Member {
		t.Fatalf("contains after remove = %s", w.Body.String())
	}
	// the collection changed, so the old tag no longer matches
	if w := f.do(http.MethodGet, "/users/a/status/played", "", "", "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("stale etag = %d", w.Code)
	}
}

// listAudit records every collection query that reaches the store.
type listAudit struct {
	docstore.Store
	mu      sync.Mutex
	queries []docstore.Query
}

func (a *listAudit) List(ctx context.Context, q docstore.Query) ([]docstore.Snapshot, error) {
	a.mu.Lock()
	a.queries = append(a.queries, q)
	a.mu.Unlock()
	return a.Store.List(ctx, q)
}

func TestListStatus_ETagNeedsOnlyTheLimitedRead(t *testing.T) {
	f := newFixture(t)
	for _, g := range []string{"1", "2", "3"} {
		if w := f.do(http.MethodPut, "/users/me/status/played/"+g, "a", ""); w.Code != http.StatusOK {
			t.Fatalf("add %s = %d", g, w.Code)
		}
	}

	audit := &listAudit{Store: f.st}
	h := New(nil, nil, &services.StatusService{Store: audit, Identity: auth.ContextProvider{}}, nil, nil, nil)
	r := gin.New()
	r.GET("/users/:id/status/:kind", h.ListStatus)
	get := func(inm string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/users/a/status/played?limit=1", nil)
		if inm != "" {
			req.Header.Set("If-None-Match", inm)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("")
	if got := decode[[]domain.StatusEntry](t, w); w.Code != http.StatusOK || len(got) != 1 || got[0].GameID != "3" {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if w := get(etag); w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("conditional = %d %q", w.Code, w.Body.String())
	}
	if len(audit.queries) != 2 {
		t.Fatalf("queries = %+v; want one per request", audit.queries)
	}
	for _, q := range audit.queries {
		if q.Limit != 1 {
			t.Fatalf("unbounded read %+v", q)
		}
	}

	// a change outside the served page leaves the tag alone
	if w := f.do(http.MethodDelete, "/users/me/status/played/1", "a", ""); w.Code != http.StatusNoContent {
		t.Fatalf("remove = %d", w.Code)
	}
	if w := get(etag); w.Code != http.StatusNotModified {
		t.Fatalf("after unrelated remove = %d", w.Code)
	}
	f.do(http.MethodPut, "/users/me/status/played/4", "a", "")
	if w := get(etag); w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("after new head = %d %q", w.Code, w.Header().Get("ETag"))
	}
}

func TestStatus_Toggle(t *testing.T) {
	f := newFixture(t)

	body := func(game string) string {
		b, _ := json.Marshal(ToggleStatusRequest{Game: game})
		return string(b)
	}

	w := f.do(http.MethodPost, "/users/me/status/wishlist/toggle", "a", body(`{"id":1942,"name":"Hades"}`))
	if r := decode[ToggleStatusResponse](t, w); w.Code != http.StatusOK || !r.Member || r.GameID != "1942" {
		t.Fatalf("toggle on = %d %s", w.Code, w.Body.String())
	}
	w = f.do(http.MethodPost, "/users/me/status/wishlist/toggle", "a", body(`{"id":"1942"}`))
	if r := decode[ToggleStatusResponse](t, w); r.Member {
		t.Fatalf("toggle off = %s", w.Body.String())
	}

	for name, payload := range map[string]string{
		"not json":   body(`{oops`),
		"missing id": body(`{"name":"x"}`),
		"no game":    `{}`,
		"nested id":  body(`{"id":"g/x/y","name":"x"}`),
		"two parts":  body(`{"id":"g/x"}`),
	} {
		w := f.do(http.MethodPost, "/users/me/status/wishlist/toggle", "a", payload)
		if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeMalformedParameter {
			t.Fatalf("%s: %d %s", name, w.Code, w.Body.String())
		}
	}
}

func TestDecodeGamePayload(t *testing.T) {
	g, err := decodeGamePayload(`{"id":"12","name":"Celeste","cover":"https://x/y.jpg"}`)
	if err != nil || g.ID != "12" || g.Name != "Celeste" || g.CoverURL == nil {
		t.Fatalf("got %+v err=%v", g, err)
	}
	if _, err := decodeGamePayload(`{"id":null}`); err == nil {
		t.Fatalf("null id should fail")
	}
	for _, raw := range []string{`{"id":"g/x"}`, `{"id":"g/x/y"}`, `{"id":".."}`} {
		_, err := decodeGamePayload(raw)
		if !errors.Is(err, services.ErrMalformedParameter) || !errors.Is(err, services.ErrInvalidID) {
			t.Fatalf("%s: err = %v", raw, err)
		}
	}
}

//
// Notifications and feeds
//

func TestNotifications_FanoutListAndPrune(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "a", "alice")
	f.seedUser(t, "b", "bob")
	if w := f.do(http.MethodPost, "/users/a/follow", "b", ""); w.Code != http.StatusNoContent {
		t.Fatalf("follow = %d", w.Code)
	}

	f.do(http.MethodPut, "/users/me/status/played/1", "a", `{"name":"Hades"}`)
	f.do(http.MethodPut, "/users/me/status/wishlist/2", "a", `{"name":"Celeste"}`)

	w := f.do(http.MethodGet, "/users/me/notifications", "b", "")
	got := decode[[]services.RenderedNotification](t, w)
	if len(got) != 2 {
		t.Fatalf("inbox = %s", w.Body.String())
	}
	texts := got[0].Text + "|" + got[1].Text
	if !strings.Contains(texts, "alice added Hades to their played games") ||
		!strings.Contains(texts, "alice added Celeste to their wishlist") {
		t.Fatalf("texts = %q", texts)
	}

	// the actor's own inbox stays empty
	if got := decode[[]services.RenderedNotification](t, f.do(http.MethodGet, "/users/me/notifications", "a", "")); len(got) != 0 {
		t.Fatalf("actor inbox = %+v", got)
	}

	// a third event overflows the cap of 2 until the owner trims
	f.do(http.MethodPut, "/users/me/status/played/3", "a", `{"name":"Celeste"}`)
	w = f.do(http.MethodDelete, "/users/me/notifications", "b", "")
	if p := decode[PruneResponse](t, w); w.Code != http.StatusOK || p.Pruned != 1 {
		t.Fatalf("prune = %d %s", w.Code, w.Body.String())
	}
	if got := decode[[]services.RenderedNotification](t, f.do(http.MethodGet, "/users/me/notifications", "b", "")); len(got) != 2 || got[0].GameID != "3" {
		t.Fatalf("inbox after prune = %+v", got)
	}
	if w := f.do(http.MethodDelete, "/users/me/notifications", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous prune = %d", w.Code)
	}
}

func TestFeed_JSONAndAtom(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "a", "alice")
	f.seedUser(t, "b", "bob")
	f.do(http.MethodPost, "/users/b/follow", "a", "")
	f.do(http.MethodPut, "/users/me/status/played/1", "b", `{"name":"Hades"}`)
	f.do(http.MethodPut, "/users/me/status/wishlist/2", "a", `{"name":"Celeste"}`)

	if w := f.do(http.MethodGet, "/users/me/feed", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous feed = %d", w.Code)
	}
	w := f.do(http.MethodGet, "/users/me/feed", "a", "")
	items := decode[[]services.ActivityItem](t, w)
	if len(items) != 2 {
		t.Fatalf("feed = %s", w.Body.String())
	}

	w = f.do(http.MethodGet, "/users/b/activity.atom", "", "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "application/atom+xml") {
		t.Fatalf("atom = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	doc := w.Body.String()
	if !strings.Contains(doc, "<feed") || !strings.Contains(doc, "bob · Played · Hades") || strings.Contains(doc, "Celeste") {
		t.Fatalf("atom body = %s", doc)
	}
}

//
// Comments
//

func TestComments_Lifecycle(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodPost, "/games/g1/comments", "a", `{"text":"   "}`); w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidText {
		t.Fatalf("blank comment = %d %s", w.Code, w.Body.String())
	}
	w := f.do(http.MethodPost, "/games/g1/comments", "a", `{"text":"love it","platform":"PC"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	cm := decode[domain.Comment](t, w)
	base := "/games/g1/comments/" + cm.ID

	f.do(http.MethodPost, "/games/g1/comments", "b", `{"text":"meh","platform":"Switch"}`)

	w = f.do(http.MethodGet, "/games/g1/comments?platform=pc", "", "")
	if got := decode[[]domain.Comment](t, w); len(got) != 1 || got[0].ID != cm.ID {
		t.Fatalf("platform filter = %s", w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if w := f.do(http.MethodGet, "/games/g1/comments?platform=pc", "", "", "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("conditional comments = %d", w.Code)
	}

	if w := f.do(http.MethodPut, base, "b", `{"text":"hijack"}`); w.Code != http.StatusForbidden {
		t.Fatalf("edit by other = %d", w.Code)
	}
	w = f.do(http.MethodPut, base, "a", `{"text":"still love it"}`)
	if w.Code != http.StatusOK || decode[domain.Comment](t, w).Text != "still love it" {
		t.Fatalf("edit = %d %s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodPost, base+"/like", "b", "")
	if l := decode[LikeResponse](t, w); !l.Liked || l.Likes != 1 {
		t.Fatalf("like = %s", w.Body.String())
	}
	w = f.do(http.MethodPost, base+"/like", "b", "")
	if l := decode[LikeResponse](t, w); l.Liked || l.Likes != 0 {
		t.Fatalf("unlike = %s", w.Body.String())
	}

	w = f.do(http.MethodPost, base+"/replies", "b", `{"text":"agreed"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("reply = %d %s", w.Code, w.Body.String())
	}
	reply := decode[domain.Reply](t, w)
	if got := decode[[]domain.Reply](t, f.do(http.MethodGet, base+"/replies", "", "")); len(got) != 1 {
		t.Fatalf("replies = %+v", got)
	}
	if w := f.do(http.MethodDelete, base+"/replies/"+reply.ID, "a", ""); w.Code != http.StatusForbidden {
		t.Fatalf("delete other's reply = %d", w.Code)
	}
	if w := f.do(http.MethodDelete, base+"/replies/nope", "b", ""); w.Code != http.StatusNotFound {
		t.Fatalf("delete missing reply = %d", w.Code)
	}
	if w := f.do(http.MethodDelete, base+"/replies/"+reply.ID, "b", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete reply = %d", w.Code)
	}

	if w := f.do(http.MethodDelete, base, "a", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := f.do(http.MethodGet, base, "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get deleted = %d", w.Code)
	}
}

//
// Websocket streams
//

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// readUntil reads frames until ok accepts one or the deadline passes.
func readUntil[T any](t *testing.T, conn *websocket.Conn, ok func(T) bool) T {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var v T
		if err := conn.ReadJSON(&v); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if ok(v) {
			return v
		}
	}
}

func TestObserveStatus_Websocket(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.r)
	defer srv.Close()

	// plain GET is rejected with a JSON envelope
	if w := f.do(http.MethodGet, "/users/a/status/played/ws", "", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("non-upgrade = %d", w.Code)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/users/a/status/played/ws"), nil)
	if err != nil {
		t.Fatalf("dial: %v (resp=%v)", err, resp)
	}
	defer conn.Close()

	first := readUntil(t, conn, func([]domain.StatusEntry) bool { return true })
	if len(first) != 0 {
		t.Fatalf("initial frame = %+v", first)
	}

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/users/me/status/played/1942", bytes.NewBufferString(`{"name":"Hades"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(testUserHeader, "a")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	_ = res.Body.Close()

	got := readUntil(t, conn, func(v []domain.StatusEntry) bool { return len(v) == 1 })
	if got[0].GameID != "1942" {
		t.Fatalf("frame = %+v", got)
	}
}

func TestObserveOwnStatus_WebsocketAlias(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.r)
	defer srv.Close()

	hdr := http.Header{}
	hdr.Set(testUserHeader, "a")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/users/me/status/wishlist/ws"), hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if first := readUntil(t, conn, func([]domain.StatusEntry) bool { return true }); len(first) != 0 {
		t.Fatalf("initial frame = %+v", first)
	}
}
