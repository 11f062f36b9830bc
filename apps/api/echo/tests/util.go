package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/certificate"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf     *core.Config
	usrRepo  user.Repository
	src      *inmemdb.ProgressSource
	certSvc  *certificate.Service
	notifSvc *notification.Service
	mailSvc  *emailsvc.ConsoleService
	now      time.Time
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "Academia",
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	notifRepo := inmemdb.NewNotificationRepository(db)
	src := inmemdb.NewProgressSource(db)

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	notification.InitValidators(validate, translator)

	logger := logsvc.NewRollbarLogger(zap.NewNop().Sugar(), conf)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo)
	tracker := progress.NewTracker(src, usrSvc)
	notifSvc := notification.NewService(notifRepo)
	certSvc := certificate.NewService(db, inmemdb.NewCertificateRepository(db), tracker, notifSvc, usrSvc, mailSvc, logger)

	app := &testApp{
		conf:     conf,
		usrRepo:  usrRepo,
		src:      src,
		certSvc:  certSvc,
		notifSvc: notifSvc,
		mailSvc:  mailSvc,
		now:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	notifSvc.SetNowFunc(func() time.Time { return app.now })
	certSvc.SetNowFunc(func() time.Time { return app.now })

	// set up server
	app.Server = NewServer(Deps{
		Conf:            conf,
		Logger:          logger,
		UserSvc:         usrSvc,
		Tracker:         tracker,
		CertificateSvc:  certSvc,
		NotificationSvc: notifSvc,
		Sweeper:         notification.NewSweeper(notifRepo, logger),
		Validate:        validate,
		Translator:      translator,
		DisableReqLogs:  true,
	})
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// complete seeds the courses of category as completed by usr.
func (app *testApp) complete(usr user.User, category string, courseIDs ...string) {
	for _, id := range courseIDs {
		app.src.AddCourse(category, id)
		app.src.SetCourseCompleted(usr.ID, id, true)
		app.src.SetWritingSubmitted(usr.ID, id, true)
	}
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(app.conf, usr)
	token, err := GenerateToken(app.conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
