package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobColumnNames = []string{"id", "topic", "status", "config", "state", "report", "created_at", "updated_at"}

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func expectJob(mock pgxmock.PgxPoolIface, report *string, status string) {
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM research_jobs WHERE id = $1")).
		WithArgs(testJobID).
		WillReturnRows(pgxmock.NewRows(jobColumnNames).
			AddRow(testJobID, "fusion power", status, []byte(`{"breadth":2,"depth":1}`), []byte(`{"totalQueries":2,"completedQueries":2}`), report, now, now))
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetJob(t *testing.T) {
	svc, mock := newTestService(t, &stubResearcher{}, nil)
	r := newTestRouter(svc)
	report := "# Fusion"
	expectJob(mock, &report, StatusCompleted)

	w := serve(r, http.MethodGet, "/api/research/"+testJobID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var job Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, testJobID, job.ID)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, JobConfig{Breadth: 2, Depth: 1}, job.Config)
	require.NotNil(t, job.Report)
	assert.Equal(t, "# Fusion", *job.Report)
	assert.JSONEq(t, `{"totalQueries":2,"completedQueries":2}`, string(job.State))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobErrors(t *testing.T) {
	svc, mock := newTestService(t, &stubResearcher{}, nil)
	r := newTestRouter(svc)

	w := serve(r, http.MethodGet, "/api/research/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mock.ExpectQuery(regexp.QuoteMeta("FROM research_jobs WHERE id = $1")).
		WithArgs(testJobID).
		WillReturnError(pgx.ErrNoRows)
	w = serve(r, http.MethodGet, "/api/research/"+testJobID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobRejectsEmptyTopic(t *testing.T) {
	svc, mock := newTestService(t, &stubResearcher{}, nil)
	r := newTestRouter(svc)

	w := serve(r, http.MethodPost, "/api/research", `{"topic": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "topic is required")

	w = serve(r, http.MethodPost, "/api/research", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobs(t *testing.T) {
	svc, mock := newTestService(t, &stubResearcher{}, nil)
	r := newTestRouter(svc)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM research_jobs ORDER BY created_at DESC LIMIT 50")).
		WillReturnRows(pgxmock.NewRows(jobColumnNames).
			AddRow(testJobID, "fusion power", StatusRunning, []byte(`{"breadth":2,"depth":1}`), []byte(nil), (*string)(nil), now, now))

	w := serve(r, http.MethodGet, "/api/research", "")
	require.Equal(t, http.StatusOK, w.Code)

	var jobs []Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusRunning, jobs[0].Status)
	assert.Nil(t, jobs[0].Report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobChunks(t *testing.T) {
	t.Run("splits the report", func(t *testing.T) {
		svc, mock := newTestService(t, &stubResearcher{}, nil)
		r := newTestRouter(svc)
		report := strings.Repeat("x", 2500)
		expectJob(mock, &report, StatusCompleted)

		w := serve(r, http.MethodGet, "/api/research/"+testJobID+"/chunks?limit=1000", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count  int      `json:"count"`
			Limit  int      `json:"limit"`
			Chunks []string `json:"chunks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Count)
		assert.Equal(t, 1000, resp.Limit)
		assert.Equal(t, report, strings.Join(resp.Chunks, ""))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("report not ready", func(t *testing.T) {
		svc, mock := newTestService(t, &stubResearcher{}, nil)
		r := newTestRouter(svc)
		expectJob(mock, nil, StatusRunning)

		w := serve(r, http.MethodGet, "/api/research/"+testJobID+"/chunks", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bad limit", func(t *testing.T) {
		svc, _ := newTestService(t, &stubResearcher{}, nil)
		r := newTestRouter(svc)

		w := serve(r, http.MethodGet, "/api/research/"+testJobID+"/chunks?limit=5000", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMetricsRoute(t *testing.T) {
	svc, _ := newTestService(t, &stubResearcher{}, nil)
	r := newTestRouter(svc)

	w := serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
