package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type idemSeen struct {
	key            string
	hasKey, replay bool
	bypass         bool
}

// idemRouter runs the validator behind a fake identity and records what the
// comment handler observed.
func idemRouter(uid string, opts IdempotencyOptions, lookup IdempotencyLookup, seen *idemSeen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid != "" {
			c.Set(ctxKeyUserID, uid)
		}
		c.Next()
	})
	r.Use(IdempotencyValidator(opts, lookup))
	r.POST("/games/:id/comments", func(c *gin.Context) {
		seen.key, seen.hasKey = GetIdempotencyKey(c)
		seen.replay, seen.bypass = IsReplay(c), IsRateBypass(c)
		c.Status(http.StatusCreated)
	})
	return r
}

func postComment(r http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/games/1942/comments", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyValidator_RejectsBadKeys(t *testing.T) {
	cases := map[string]struct {
		opts IdempotencyOptions
		key  string
	}{
		"default max length": {IdempotencyOptions{}, strings.Repeat("k", 201)},
		"custom max length":  {IdempotencyOptions{MaxLen: 4}, "abcde"},
		"space":              {IdempotencyOptions{}, "two words"},
		"custom pattern":     {IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, "abc"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var seen idemSeen
			w := postComment(idemRouter("alice", tc.opts, nil, &seen), tc.key)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", w.Code)
			}
			var body map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body["code"] != "bad_idempotency_key" {
				t.Fatalf("body = %v", body)
			}
		})
	}
}

func TestIdempotencyValidator_LookupOutcomes(t *testing.T) {
	var calls []string
	lookup := func(_ context.Context, uid, key string, now time.Time) (bool, error) {
		if now.Location() != time.UTC {
			t.Errorf("lookup time not UTC: %v", now)
		}
		calls = append(calls, uid+"|"+key)
		return key == "done", nil
	}

	cases := []struct {
		name, uid, key string
		want           idemSeen
		wantCalls      int
	}{
		{"no header", "alice", "", idemSeen{}, 0},
		{"miss", "alice", "fresh", idemSeen{key: "fresh", hasKey: true}, 1},
		{"hit", "alice", "done", idemSeen{key: "done", hasKey: true, replay: true, bypass: true}, 1},
		{"anonymous keeps key without lookup", "", "done", idemSeen{key: "done", hasKey: true}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls = nil
			var seen idemSeen
			w := postComment(idemRouter(tc.uid, IdempotencyOptions{MaxLen: 200}, lookup, &seen), tc.key)
			if w.Code != http.StatusCreated {
				t.Fatalf("status = %d", w.Code)
			}
			if seen != tc.want || len(calls) != tc.wantCalls {
				t.Fatalf("seen %+v calls %v; want %+v with %d calls", seen, calls, tc.want, tc.wantCalls)
			}
		})
	}
}

func TestIdempotencyValidator_LookupErrorIsMiss(t *testing.T) {
	lookup := func(context.Context, string, string, time.Time) (bool, error) {
		return true, context.DeadlineExceeded
	}
	var seen idemSeen
	postComment(idemRouter("alice", IdempotencyOptions{}, lookup, &seen), "k-1")
	if seen.replay || seen.bypass {
		t.Fatalf("lookup error treated as replay: %+v", seen)
	}
}
