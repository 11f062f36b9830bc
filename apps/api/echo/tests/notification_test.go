package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

type notificationResp struct {
	notification.Notification
	RemainingSeconds int64 `json:"remaining_seconds"`
}

func decodeNotification(t *testing.T, body []byte) notificationResp {
	t.Helper()
	var n notificationResp
	require.NoError(t, json.Unmarshal(body, &n))
	return n
}

func (app *testApp) notify(t *testing.T, usr user.User, title string) notification.Notification {
	t.Helper()
	n, err := app.notifSvc.Create(context.Background(), notification.NewNotification{
		UserID:  usr.ID,
		Title:   title,
		Message: "Hello " + usr.Name,
		Type:    notification.TypeGeneric,
	})
	require.NoError(t, err)
	return n
}

func Test_notificationApi_readState(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, app.usrRepo, "King", "king", "king@test.cd", []string{user.RoleStudent}, true)
	token := app.getToken(t, student)

	n1 := app.notify(t, student, "first")
	app.now = app.now.Add(time.Minute)
	n2 := app.notify(t, student, "second")
	theirs := app.notify(t, other, "theirs")

	readN1 := n1
	readN1.Read = true

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/notifications", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "newest first", method: http.MethodGet, path: "/v1/notifications", token: token,
			wantData: marchallList(t, notificationResp{Notification: n2}, notificationResp{Notification: n1}),
		},
		{
			name: "invalid unread filter", method: http.MethodGet, path: "/v1/notifications?unread=lol", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"unread": "must be a boolean"}),
		},
		{
			name: "others' notification", method: http.MethodPost, path: "/v1/notifications/" + theirs.ID + "/read", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: notification.ErrNotFound.Error()}),
		},
		{
			name: "unknown notification", method: http.MethodGet, path: "/v1/notifications/lol", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: notification.ErrNotFound.Error()}),
		},
		{
			name: "mark read", method: http.MethodPost, path: "/v1/notifications/" + n1.ID + "/read", token: token,
			wantData: marchallObj(t, notificationResp{Notification: readN1}),
		},
		{
			name: "mark read again", method: http.MethodPost, path: "/v1/notifications/" + n1.ID + "/read", token: token,
			wantData: marchallObj(t, notificationResp{Notification: readN1}),
		},
		{
			name: "unread only", method: http.MethodGet, path: "/v1/notifications?unread=true", token: token,
			wantData: marchallList(t, notificationResp{Notification: n2}),
		},
		{
			name: "mark all read", method: http.MethodPost, path: "/v1/notifications/read-all", token: token,
			wantData: marchallObj(t, map[string]int{"updated": 1}),
		},
		{
			name: "nothing left unread", method: http.MethodGet, path: "/v1/notifications?unread=1", token: token,
			wantData: marchallList(t),
		},
		{
			name: "others untouched", method: http.MethodGet, path: "/v1/notifications?unread=true", token: app.getToken(t, other),
			wantData: marchallList(t, notificationResp{Notification: theirs}),
		},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.run(t, tt))
		})
	}
}

func Test_notificationApi_create(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", []string{user.RoleAdmin}, true)
	adminToken := app.getToken(t, admin)

	valid := notification.NewNotification{UserID: student.ID, Title: " Welcome ", Message: "Hi!", Type: notification.TypeGeneric}

	tests := []httpTest{
		{
			name: "Admin required", body: marchallObj(t, valid), token: app.getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", body: []byte(`{}`), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"user_id": "this field is required",
				"title":   "this field is required",
				"message": "this field is required",
				"type":    "this field is required",
			}),
		},
		{
			name: "unknown recipient", token: adminToken, wantCode: http.StatusNotFound,
			body:     marchallObj(t, notification.NewNotification{UserID: "lol", Title: "Hi", Message: "Hi", Type: notification.TypeGeneric}),
			wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
		},
		{name: "created", body: marchallObj(t, valid), token: adminToken, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/notifications"

		t.Run(tt.name, func(t *testing.T) {
			rec := app.run(t, tt)
			if tt.wantCode != http.StatusCreated {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			n := decodeNotification(t, rec.Body.Bytes())
			assert.NotEmpty(t, n.ID)
			assert.Equal(t, student.ID, n.UserID)
			assert.Equal(t, "Welcome", n.Title)
			assert.False(t, n.Read)
		})
	}
}

func Test_notificationApi_deferredDeletion(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", []string{user.RoleAdmin}, true)
	token := app.getToken(t, student)
	adminToken := app.getToken(t, admin)
	t0 := app.now

	kept := app.notify(t, student, "kept")
	gone := app.notify(t, student, "gone")

	deletion := func(method string, n notification.Notification) httpTest {
		return httpTest{method: method, path: "/v1/notifications/" + n.ID + "/deletion", token: token}
	}

	t.Run("cancel while active", func(t *testing.T) {
		tt := deletion(http.MethodDelete, kept)
		tt.wantCode = http.StatusConflict
		tt.wantData = marchallObj(t, httpErr{Error: notification.ErrInvalidState.Error()})
		checkCodeAndData(t, tt, app.run(t, tt))
	})

	t.Run("mark for deletion", func(t *testing.T) {
		for _, n := range []notification.Notification{kept, gone} {
			rec := app.run(t, deletion(http.MethodPost, n))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			resp := decodeNotification(t, rec.Body.Bytes())
			assert.True(t, resp.PendingDelete)
			require.NotNil(t, resp.DeleteAt)
			assert.True(t, t0.Add(time.Hour).Equal(*resp.DeleteAt))
			assert.Equal(t, int64(3600), resp.RemainingSeconds)
		}

		tt := deletion(http.MethodPost, kept)
		tt.wantCode = http.StatusConflict
		tt.wantData = marchallObj(t, httpErr{Error: notification.ErrInvalidState.Error()})
		checkCodeAndData(t, tt, app.run(t, tt))
	})

	t.Run("cancel within grace period", func(t *testing.T) {
		app.now = t0.Add(59 * time.Minute)
		rec := app.run(t, deletion(http.MethodDelete, kept))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeNotification(t, rec.Body.Bytes())
		assert.False(t, resp.PendingDelete)
		assert.Nil(t, resp.DeleteAt)
		assert.Equal(t, int64(0), resp.RemainingSeconds)
	})

	t.Run("sweep", func(t *testing.T) {
		sweep := httpTest{method: http.MethodPost, path: "/v1/jobs/sweep", token: token, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, sweep, app.run(t, sweep))

		sweep.token = adminToken
		sweep.wantCode = http.StatusOK
		sweep.wantData = marchallObj(t, map[string]int{"deleted": 0})
		checkCodeAndData(t, sweep, app.run(t, sweep))

		app.now = t0.Add(time.Hour)
		sweep.wantData = marchallObj(t, map[string]int{"deleted": 1})
		checkCodeAndData(t, sweep, app.run(t, sweep))
	})

	t.Run("too late to cancel", func(t *testing.T) {
		tt := deletion(http.MethodDelete, gone)
		tt.wantCode = http.StatusGone
		tt.wantData = marchallObj(t, httpErr{Error: "too late to cancel"})
		checkCodeAndData(t, tt, app.run(t, tt))
	})

	t.Run("only kept is listed", func(t *testing.T) {
		n, err := app.notifSvc.Get(context.Background(), kept.ID)
		require.NoError(t, err)
		tt := httpTest{method: http.MethodGet, path: "/v1/notifications", token: token, wantCode: http.StatusOK,
			wantData: marchallList(t, notificationResp{Notification: n})}
		checkCodeAndData(t, tt, app.run(t, tt))
	})
}

func Test_notificationApi_sweepOnList(t *testing.T) {
	app := setup(t)
	app.conf.Notification.SweepOnList = true

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)
	token := app.getToken(t, student)
	n := app.notify(t, student, "expiring")

	_, err := app.notifSvc.MarkForDeletion(context.Background(), n.ID)
	require.NoError(t, err)

	list := httpTest{method: http.MethodGet, path: "/v1/notifications", token: token, wantCode: http.StatusOK}
	rec := app.run(t, list)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []notificationResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1, "still restorable")
	assert.Equal(t, int64(3600), resp[0].RemainingSeconds)

	app.now = app.now.Add(time.Hour)
	list.wantData = marchallList(t)
	checkCodeAndData(t, list, app.run(t, list))
}
