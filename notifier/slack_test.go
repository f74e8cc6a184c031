package notifier_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slacktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackChannelSend(t *testing.T) {
	var (
		mu       sync.Mutex
		lookups  int
		channels []string
	)
	srv := slacktest.NewTestServer(func(c slacktest.Customize) {
		c.Handle("/users.lookupByEmail", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			mu.Lock()
			lookups++
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			if r.FormValue("email") == "ivanov@example.com" {
				_, _ = w.Write([]byte(`{"ok":true,"user":{"id":"UIVANOV","name":"ivanov"}}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":false,"error":"users_not_found"}`))
		}))
		c.Handle("/chat.postMessage", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			mu.Lock()
			channels = append(channels, r.FormValue("channel"))
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"channel":"D1","ts":"123456.789"}`))
		}))
	})
	go srv.Start()
	defer srv.Stop()

	api := slack.New("dummy", slack.OptionAPIURL(srv.GetAPIURL()))
	slackRepo := repository.NewSlackRepository(api)
	defer slackRepo.Stop()
	ch := notifier.NewSlackChannel(slackRepo)
	ctx := context.Background()
	n := entity.Notification{ID: 1, Title: "Your duty starts today", Text: "Duty role: L1"}

	require.NoError(t, ch.Send(ctx, entity.User{ID: 1, Email: "ivanov@example.com"}, n))
	require.NoError(t, ch.Send(ctx, entity.User{ID: 1, Email: "ivanov@example.com"}, n))
	require.NoError(t, ch.Send(ctx, entity.User{ID: 2, SlackID: "UPETROV"}, n))
	require.NoError(t, ch.Send(ctx, entity.User{ID: 3, Email: "unknown@example.com"}, n))
	require.NoError(t, ch.Send(ctx, entity.User{ID: 4}, n))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"UIVANOV", "UIVANOV", "UPETROV"}, channels)
	// 2回目はキャッシュから引く
	assert.Equal(t, 2, lookups)
}

type fakeTelegram struct {
	chats []int64
	texts []string
}

func (f *fakeTelegram) SendMessage(chatID int64, text string) error {
	f.chats = append(f.chats, chatID)
	f.texts = append(f.texts, text)
	return nil
}

func TestTelegramChannelSend(t *testing.T) {
	tg := &fakeTelegram{}
	ch := notifier.NewTelegramChannel(tg)
	n := entity.Notification{Title: "Incident <db>", Text: "level 2 & rising"}

	require.NoError(t, ch.Send(context.Background(), entity.User{ID: 1}, n))
	require.NoError(t, ch.Send(context.Background(), entity.User{ID: 2, TelegramID: 555}, n))

	require.Len(t, tg.chats, 1)
	assert.Equal(t, int64(555), tg.chats[0])
	assert.Equal(t, "<b>Incident &lt;db&gt;</b>\nlevel 2 &amp; rising", tg.texts[0])
}
