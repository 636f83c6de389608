package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/hoopdesk/hoopdesk/core"
	"github.com/hoopdesk/hoopdesk/core/feed"
	"github.com/hoopdesk/hoopdesk/core/user"
)

const (
	testSecret   = "secret"
	testAudience = "authenticated"

	adminID   = "8a6e0804-2bd0-4672-b79d-d97027f9071a"
	coachID   = "2c7e9a4b-7d0e-4a4f-9a55-7b1f5c1d2e3f"
	playerUID = "5f1d7c2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f"
	pendingID = "0b9f3e2d-1c4a-4b5e-9f6a-7d8c9e0f1a2b"
	rejectID  = "6e5d4c3b-2a19-4087-b6a5-d4c3b2a19087"
	parentID  = "9d8c7b6a-5f4e-4d3c-8b2a-190f8e7d6c5b"

	teamID   = "1f2e3d4c-5b6a-4798-8a6b-5c4d3e2f1a0b"
	eventID  = "3a4b5c6d-7e8f-4a0b-9c1d-2e3f4a5b6c7d"
	playerID = "7c6b5a49-3827-4160-9f8e-7d6c5b4a3928"
	chatID   = "4d5e6f70-8192-4a3b-8c4d-5e6f708192a3"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

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

type testApp struct {
	*Server
	fakes *fakes
	conf  *core.Config
}

func newTestConfig() *core.Config {
	return &core.Config{
		AppName:  "Hoopdesk",
		TestMode: true,
		Server:   core.ServerConfig{AllowedOrigins: []string{"*"}},
		Auth:     core.AuthConfig{JWTSecret: testSecret, JWTAudience: testAudience},
		Feed:     core.FeedConfig{Debounce: 10 * time.Millisecond},
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// setup builds a server over fakes. The users known to the gate are the ids above.
func setup(t *testing.T, hub ...feed.Subscriber) *testApp {
	t.Helper()

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	conf := newTestConfig()
	f := newFakes()
	deps := ServerDeps{
		Conf:          conf,
		Logger:        core.NopLogger{},
		Validate:      validate,
		Translator:    translator,
		UserSvc:       f.users,
		MembershipSvc: f.memberships,
		AttendanceSvc: f.attendance,
		GradingSvc:    f.grading,
		ChatSvc:       f.chat,
		TeamSvc:       f.team,
		HealthSvc:     f.health,
		TelemetrySvc:  f.telemetry,
		VideoSvc:      f.video,
		NotifySvc:     f.notify,
	}
	if len(hub) > 0 {
		deps.Feed = hub[0]
	}
	return &testApp{Server: NewServer(deps), fakes: f, conf: conf}
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

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, userID string) string {
	token, err := GenerateToken(NewClaims(userID, userID+"@test.io", testAudience, time.Hour), testSecret)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
