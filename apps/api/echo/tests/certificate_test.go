package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/testutil"
)

func Test_certificateApi_issueOrRefresh(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)
	token := app.getToken(t, student)
	path := "/v1/categories/go/certificate"

	app.src.AddCourse("go", "go-101")
	app.src.AddCourse("go", "go-102")
	app.complete(student, "go", "go-101")

	t.Run("Auth required", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, app.run(t, tt))
	})

	t.Run("not eligible", func(t *testing.T) {
		tt := httpTest{
			method: http.MethodPost, path: path, token: token, wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: certificate.ErrNotEligible.Error()}),
		}
		checkCodeAndData(t, tt, app.run(t, tt))

		tt = httpTest{
			method: http.MethodGet, path: path, token: token, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: certificate.ErrNotFound.Error()}),
		}
		checkCodeAndData(t, tt, app.run(t, tt))
	})

	app.complete(student, "go", "go-102")

	t.Run("issued", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodPost, path: path, token: token})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		cert, err := app.certSvc.Get(ctx, student.ID, "go")
		require.NoError(t, err)
		checkCodeAndData(t, httpTest{wantCode: http.StatusCreated, wantData: marchallObj(t, cert)}, rec)
		assert.Equal(t, []string{"go-101", "go-102"}, cert.CompletedCourseIDs)
		assert.Len(t, app.mailSvc.Sent(), 1)

		tt := httpTest{method: http.MethodGet, path: path, token: token, wantCode: http.StatusOK, wantData: marchallObj(t, cert)}
		checkCodeAndData(t, tt, app.run(t, tt))
	})

	t.Run("refreshed", func(t *testing.T) {
		app.now = app.now.Add(time.Hour)
		rec := app.run(t, httpTest{method: http.MethodPost, path: path, token: token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var cert certificate.Certificate
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cert))
		require.NotNil(t, cert.UpdatedAt)
		assert.True(t, app.now.Equal(*cert.UpdatedAt))
		assert.Len(t, app.mailSvc.Sent(), 1, "refreshing does not email")
	})

	t.Run("list", func(t *testing.T) {
		certs, err := app.certSvc.List(ctx, student.ID)
		require.NoError(t, err)
		tt := httpTest{method: http.MethodGet, path: "/v1/certificates", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, certs)}
		checkCodeAndData(t, tt, app.run(t, tt))

		other := testutil.CreateUser(t, app.usrRepo, "King", "king", "king@test.cd", []string{user.RoleStudent}, true)
		tt = httpTest{method: http.MethodGet, path: "/v1/certificates", token: app.getToken(t, other), wantCode: http.StatusOK, wantData: marchallList(t)}
		checkCodeAndData(t, tt, app.run(t, tt))
	})
}

func Test_certificateApi_hooks(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, app.usrRepo, "King", "king", "king@test.cd", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", []string{user.RoleAdmin}, true)
	adminToken := app.getToken(t, admin)

	app.complete(student, "go", "go-101")
	app.complete(other, "go", "go-101")
	_, err := app.certSvc.IssueOrRefresh(ctx, student.ID, "go")
	require.NoError(t, err)
	_, err = app.certSvc.IssueOrRefresh(ctx, other.ID, "go")
	require.NoError(t, err)

	checkPath := "/v1/hooks/users/" + student.ID + "/categories/go/check-outdated"
	addedPath := "/v1/hooks/categories/go/course-added"

	tests := []httpTest{
		{name: "Auth required", path: addedPath, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: addedPath, token: app.getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "up to date", path: checkPath, token: adminToken, wantData: marchallObj(t, map[string]bool{"outdated": false})},
		{name: "nothing to flag", path: addedPath, token: adminToken, wantData: marchallObj(t, map[string]int{"outdated_count": 0})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.run(t, tt))
		})
	}

	app.src.AddCourse("go", "go-102")

	t.Run("check one", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: checkPath, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, map[string]bool{"outdated": true})}
		checkCodeAndData(t, tt, app.run(t, tt))
	})

	t.Run("course added", func(t *testing.T) {
		tt := httpTest{method: http.MethodPost, path: addedPath, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, map[string]int{"outdated_count": 1})}
		checkCodeAndData(t, tt, app.run(t, tt))

		tt.wantData = marchallObj(t, map[string]int{"outdated_count": 0})
		checkCodeAndData(t, tt, app.run(t, tt))

		cert, err := app.certSvc.Get(ctx, other.ID, "go")
		require.NoError(t, err)
		assert.True(t, cert.IsOutdated)
	})

	t.Run("no certificate", func(t *testing.T) {
		path := "/v1/hooks/users/" + admin.ID + "/categories/go/check-outdated"
		tt := httpTest{method: http.MethodPost, path: path, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, map[string]bool{"outdated": false})}
		checkCodeAndData(t, tt, app.run(t, tt))
	})
}
