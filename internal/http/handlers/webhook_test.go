package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/repo"
)

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// inlineLoop runs submitted work immediately, or refuses it when stopped.
type inlineLoop struct {
	stopped bool
	names   []string
}

func (l *inlineLoop) Submit(ctx context.Context, name string, fn func(context.Context)) error {
	if l.stopped {
		return errors.New("loop stopped")
	}
	l.names = append(l.names, name)
	fn(ctx)
	return nil
}

type webhookFixture struct {
	db     *gorm.DB
	loop   *inlineLoop
	events []gateway.Event
	router *gin.Engine
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &webhookFixture{db: newHandlerDB(t), loop: &inlineLoop{}}
	w := &Webhook{
		DB:   f.db,
		Loop: f.loop,
		Handle: func(_ context.Context, ev gateway.Event) {
			f.events = append(f.events, ev)
		},
		Clock:    clockwork.NewFakeClockAt(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		MaxBytes: 512,
	}
	f.router = gin.New()
	f.router.POST("/hook", w.Receive)
	return f
}

func (f *webhookFixture) post(body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	return w
}

func textUpdate(id int64, text string) string {
	return fmt.Sprintf(`{"update_id":%d,"message":{"message_id":1,"from":{"id":5,"first_name":"Ann"},"chat":{"id":5,"type":"private"},"text":%q}}`, id, text)
}

func statusOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return body.Status
}

func TestWebhook_AcceptsAndHandlesOnce(t *testing.T) {
	f := newWebhookFixture(t)
	before := testutil.ToFloat64(webhookUpdates.WithLabelValues(outcomeDuplicate))

	w := f.post(textUpdate(10, "/start"))
	if w.Code != http.StatusOK || statusOf(t, w) != "accepted" {
		t.Fatalf("first delivery: %d %s", w.Code, w.Body.String())
	}
	if len(f.events) != 1 || f.loop.names[0] != "update:10" {
		t.Fatalf("events = %+v names = %v", f.events, f.loop.names)
	}
	msg, isText := f.events[0].(*gateway.TextMessage)
	if !isText || msg.Text != "/start" || msg.From.ID != 5 {
		t.Fatalf("event = %+v", f.events[0])
	}

	w = f.post(textUpdate(10, "/start"))
	if w.Code != http.StatusOK || statusOf(t, w) != "duplicate" {
		t.Fatalf("redelivery: %d %s", w.Code, w.Body.String())
	}
	if len(f.events) != 1 {
		t.Fatalf("duplicate was handled again")
	}
	if got := testutil.ToFloat64(webhookUpdates.WithLabelValues(outcomeDuplicate)) - before; got != 1 {
		t.Fatalf("duplicate metric delta = %v", got)
	}
}

func TestWebhook_IgnoresUnsupportedUpdates(t *testing.T) {
	f := newWebhookFixture(t)
	w := f.post(`{"update_id":11,"edited_message":{"message_id":1,"chat":{"id":5,"type":"private"},"text":"x"}}`)
	if w.Code != http.StatusOK || statusOf(t, w) != "ignored" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if len(f.events) != 0 {
		t.Fatalf("ignored update reached the bot")
	}
}

func TestWebhook_Malformed(t *testing.T) {
	f := newWebhookFixture(t)
	for _, body := range []string{"not json", `{"message":{}}`} {
		w := f.post(body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: status = %d", body, w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != ErrCodeBadRequest {
			t.Fatalf("%q: body = %s", body, w.Body.String())
		}
	}
}

func TestWebhook_TooLarge(t *testing.T) {
	f := newWebhookFixture(t)
	w := f.post(textUpdate(12, strings.Repeat("a", 600)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhook_StoppedLoopReleasesClaim(t *testing.T) {
	f := newWebhookFixture(t)
	f.loop.stopped = true

	w := f.post(textUpdate(13, "hi"))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}

	f.loop.stopped = false
	w = f.post(textUpdate(13, "hi"))
	if w.Code != http.StatusOK || statusOf(t, w) != "accepted" || len(f.events) != 1 {
		t.Fatalf("retry after 503: %d %s events=%d", w.Code, w.Body.String(), len(f.events))
	}
}

func TestHealth_LiveAndReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerDB(t)
	h := &Health{DB: db}
	r := gin.New()
	r.GET("/health", h.Live)
	r.GET("/ready", h.Ready)

	for path, want := range map[string]string{"/health": "ok", "/ready": "ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || statusOf(t, w) != want {
			t.Fatalf("%s: %d %s", path, w.Code, w.Body.String())
		}
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("closed db: status = %d", w.Code)
	}
}
