package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/estim2b/internal/config"
	"github.com/wfunc/estim2b/internal/device"
	"github.com/wfunc/estim2b/internal/errors"
	"github.com/wfunc/estim2b/internal/repository"
	"github.com/wfunc/estim2b/internal/service"
	"gorm.io/gorm"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Kind    string          `json:"kind"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) (int, apiResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	h.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

// RouterTestSuite 基于模拟器的API测试套件
type RouterTestSuite struct {
	suite.Suite
	db      *gorm.DB
	journal *service.ExchangeLogService
	sim     *device.Simulator
	handler http.Handler
}

func (suite *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *RouterTestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()
	suite.journal = service.NewExchangeLogService(suite.db, config.JournalConfig{
		BufferSize:    64,
		BatchSize:     64,
		FlushInterval: time.Hour,
	})
	suite.sim = device.NewSimulator(device.WithRecorder(suite.journal))
	suite.handler = NewRouter(suite.sim, suite.journal).Handler()
}

func (suite *RouterTestSuite) TearDownTest() {
	suite.journal.Stop()
	repository.CleanupTestDB(suite.db)
}

func (suite *RouterTestSuite) get(target string) (int, apiResponse) {
	return do(suite.T(), suite.handler, http.MethodGet, target, nil)
}

func (suite *RouterTestSuite) data(resp apiResponse, v interface{}) {
	suite.Require().NoError(json.Unmarshal(resp.Data, v))
}

func (suite *RouterTestSuite) TestHealth() {
	w := httptest.NewRecorder()
	suite.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	suite.Equal(http.StatusOK, w.Code)

	var body map[string]string
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal("healthy", body["status"])
	suite.Equal(device.BackendSimulator, body["backend"])
	suite.Equal(device.SimulatorVersion, body["version"])
}

func (suite *RouterTestSuite) TestGetState() {
	for _, target := range []string{"/api/", "/api/get_state"} {
		code, resp := suite.get(target)
		suite.Equal(http.StatusOK, code, target)
		suite.True(resp.Success)

		var st device.State
		suite.data(resp, &st)
		suite.Equal(suite.sim.State(), st)
	}
}

func (suite *RouterTestSuite) TestGetters() {
	cases := []struct {
		target string
		want   string
	}{
		{"/api/get_mode", `"Pulse"`},
		{"/api/get_power", `"LOW"`},
		{"/api/get_bias", `"A"`},
		{"/api/get_joined_channels", `false`},
		{"/api/get_map", `"A"`},
		{"/api/get_ramp", `"X1"`},
		{"/api/get_warp", `"X1"`},
		{"/api/get_battery", `1000`},
		{"/api/get_channel?id=C", `50`},
		{"/api/get_version", `"2.122B"`},
	}

	for _, tc := range cases {
		code, resp := suite.get(tc.target)
		suite.Equal(http.StatusOK, code, tc.target)
		suite.JSONEq(tc.want, string(resp.Data), tc.target)
	}
}

func (suite *RouterTestSuite) TestSetters() {
	cases := []struct {
		target string
		check  func(st device.State)
	}{
		{"/api/set_mode?mode=Wave", func(st device.State) { suite.Equal(device.ModeWave, st.Mode) }},
		{"/api/set_power?power=HIGH", func(st device.State) { suite.Equal(device.PowerHigh, st.Power) }},
		{"/api/set_map?map=C", func(st device.State) { suite.Equal(device.MapC, st.Map) }},
		{"/api/set_bias?bias=MAX", func(st device.State) { suite.Equal(device.BiasMax, st.Bias) }},
		{"/api/set_ramp?ramp=X3", func(st device.State) { suite.Equal(device.RampX3, st.Ramp) }},
		{"/api/set_warp?warp=X16", func(st device.State) { suite.Equal(device.WarpX16, st.Warp) }},
		{"/api/set_joined_channels?enable=true", func(st device.State) { suite.True(st.JoinedChannels) }},
		{"/api/set_channel?id=A&value=42", func(st device.State) { suite.Equal(uint8(42), st.ChannelA) }},
		{"/api/increment_channel?id=B", func(st device.State) { suite.Equal(uint8(1), st.ChannelB) }},
		{"/api/decrement_channel?id=B", func(st device.State) { suite.Equal(uint8(0), st.ChannelB) }},
		{"/api/kill", func(st device.State) { suite.Zero(st.ChannelA) }},
		{"/api/refresh_state", func(st device.State) { suite.Equal(device.ModeWave, st.Mode) }},
		{"/api/reset", func(st device.State) { suite.Equal(device.ModePulse, st.Mode) }},
	}

	for _, tc := range cases {
		code, resp := suite.get(tc.target)
		suite.Require().Equal(http.StatusOK, code, tc.target)
		suite.True(resp.Success)

		var st device.State
		suite.data(resp, &st)
		tc.check(st)
		suite.Equal(suite.sim.State(), st)
	}
}

func (suite *RouterTestSuite) TestInvalidParams() {
	before := suite.sim.State()

	targets := []string{
		"/api/set_mode?mode=bogus",
		"/api/set_mode",
		"/api/set_power?power=D",
		"/api/set_map?map=D",
		"/api/set_bias?bias=avg",
		"/api/set_ramp?ramp=X5",
		"/api/set_warp?warp=X3",
		"/api/set_joined_channels?enable=yes",
		"/api/increment_channel?id=E",
		"/api/decrement_channel?id=a",
		"/api/set_channel?id=A&value=300",
		"/api/set_channel?id=A&value=-1",
		"/api/set_channel?id=Z&value=1",
		"/api/get_channel?id=5",
	}

	for _, target := range targets {
		code, resp := suite.get(target)
		suite.Equal(http.StatusBadRequest, code, target)
		suite.False(resp.Success)
		suite.Require().NotNil(resp.Error, target)
		suite.Equal(int(errors.ErrInvalidParam), resp.Error.Code)
		suite.NotEmpty(resp.RequestID)
	}

	suite.Equal(before, suite.sim.State())
}

func (suite *RouterTestSuite) TestSetState() {
	body := []byte(`{"mode":"Milk","channel_a":10,"channel_b":20,"channel_c":50,"channel_d":50,
		"power":"DYNAMIC","bias":"B","joined_channels":true,"map":"B","ramp":"X2","warp":"X8","battery":1}`)

	code, resp := do(suite.T(), suite.handler, http.MethodPost, "/api/set_state", body)
	suite.Require().Equal(http.StatusOK, code)

	var st device.State
	suite.data(resp, &st)
	suite.Equal(device.ModeMilk, st.Mode)
	suite.Equal(uint8(20), st.ChannelB)
	suite.Equal(device.PowerDynamic, st.Power)
	suite.True(st.JoinedChannels)
	suite.Equal(uint16(device.SimulatorBattery), st.Battery)

	code, resp = do(suite.T(), suite.handler, http.MethodPost, "/api/set_state", []byte(`{"mode":"Nope"}`))
	suite.Equal(http.StatusBadRequest, code)
	suite.Equal(int(errors.ErrInvalidParam), resp.Error.Code)
}

func (suite *RouterTestSuite) TestNotFound() {
	code, resp := suite.get("/api/missing")
	suite.Equal(http.StatusNotFound, code)
	suite.Equal(int(errors.ErrNotFound), resp.Error.Code)
}

func (suite *RouterTestSuite) TestExchanges() {
	suite.get("/api/set_mode?mode=Milk")
	suite.get("/api/set_mode?mode=Step")
	suite.get("/api/kill")
	suite.journal.Flush()

	code, resp := suite.get("/api/exchanges?command=M")
	suite.Require().Equal(http.StatusOK, code)
	var page struct {
		Logs  []map[string]interface{} `json:"logs"`
		Total int64                    `json:"total"`
	}
	suite.data(resp, &page)
	suite.Equal(int64(2), page.Total)
	suite.Len(page.Logs, 2)

	code, resp = suite.get("/api/exchanges/latest?limit=1")
	suite.Require().Equal(http.StatusOK, code)
	var latest struct {
		Count int `json:"count"`
	}
	suite.data(resp, &latest)
	suite.Equal(1, latest.Count)

	code, resp = suite.get("/api/exchanges/stats")
	suite.Require().Equal(http.StatusOK, code)
	var stats map[string]interface{}
	suite.data(resp, &stats)
	suite.EqualValues(3, stats["total_count"])

	code, _ = suite.get("/api/exchanges/stats?start_time=yesterday")
	suite.Equal(http.StatusBadRequest, code)
	code, _ = suite.get("/api/exchanges/latest?limit=x")
	suite.Equal(http.StatusBadRequest, code)
}

func (suite *RouterTestSuite) TestOpenAPIDocumentsRoutes() {
	w := httptest.NewRecorder()
	suite.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi", nil))
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Header().Get("Content-Type"), "yaml")
	doc := w.Body.String()

	engine := suite.handler.(*gin.Engine)
	for _, route := range engine.Routes() {
		if !strings.HasPrefix(route.Path, "/api") && route.Path != "/health" {
			continue
		}
		key := "\n  " + route.Path + ":\n"
		i := strings.Index(doc, key)
		if !suite.True(i >= 0, "未记录 %s %s", route.Method, route.Path) {
			continue
		}
		block := doc[i+len(key):]
		if end := strings.Index(block, "\n  /"); end >= 0 {
			block = block[:end]
		}
		suite.Contains(block, "    "+strings.ToLower(route.Method)+":", route.Path)
	}

	w = httptest.NewRecorder()
	suite.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/ui", nil))
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "/openapi")
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

// failingDevice 所有交互都超时的设备
type failingDevice struct {
	*device.Simulator
	err error
}

func (f *failingDevice) RefreshState() error         { return f.err }
func (f *failingDevice) SetMode(device.Mode) error   { return f.err }
func (f *failingDevice) SetState(device.State) error { return f.err }

func TestRouter_DeviceErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{errors.New(errors.ErrSerialTimeout), http.StatusGatewayTimeout, errors.KindConnection},
		{errors.New(errors.ErrSerialPortWrite), http.StatusServiceUnavailable, errors.KindConnection},
		{errors.New(errors.ErrInvalidResponse), http.StatusBadGateway, errors.KindParser},
	}

	for _, tc := range cases {
		dev := &failingDevice{Simulator: device.NewSimulator(), err: tc.err}
		h := NewRouter(dev, nil).Handler()

		code, resp := do(t, h, http.MethodGet, "/api/refresh_state", nil)
		assert.Equal(t, tc.status, code)
		assert.False(t, resp.Success)
		assert.Equal(t, tc.kind, resp.Kind)

		code, _ = do(t, h, http.MethodGet, "/api/set_mode?mode=Wave", nil)
		assert.Equal(t, tc.status, code)
	}
}

func TestRouter_NoJournal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewRouter(device.NewSimulator(), nil).Handler()

	code, resp := do(t, h, http.MethodGet, "/api/exchanges", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
}
