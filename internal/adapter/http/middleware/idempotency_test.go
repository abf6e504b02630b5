package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports/mocks"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newIdempotentRouter(store *mocks.MockIdempotencyStore, handler gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.POST("/deposit", withAccount("alice"), Idempotency(store, "deposit", zerolog.Nop()), handler)
	return router
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	calls := 0
	router := newIdempotentRouter(mocks.NewMockIdempotencyStore(ctrl), func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/deposit", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_StoresSuccessfulResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "alice:deposit:k-1").Return(nil, nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, record *domain.IdempotencyRecord) error {
			assert.Equal(t, "alice:deposit:k-1", record.Key)
			assert.Equal(t, http.StatusOK, record.StatusCode)
			assert.Contains(t, string(record.ResponseJSON), `"balance":10`)
			return nil
		},
	)

	router := newIdempotentRouter(store, func(c *gin.Context) {
		response.OK(c, gin.H{"balance": 10})
	})

	req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderReplayed))
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stored := []byte(`{"data":{"balance":10}}`)
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "alice:deposit:k-1").Return(&domain.IdempotencyRecord{
		Key:          "alice:deposit:k-1",
		StatusCode:   http.StatusOK,
		ResponseJSON: stored,
	}, nil)

	router := newIdempotentRouter(store, func(c *gin.Context) {
		t.Fatal("handler must not run on replay")
	})

	req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(HeaderReplayed))
	assert.Equal(t, stored, w.Body.Bytes())
}

func TestIdempotency_FailedResponseNotStored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)

	router := newIdempotentRouter(store, func(c *gin.Context) {
		response.Error(c, apperror.ErrCapExceeded())
	})

	req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIdempotency_LookupError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	router := newIdempotentRouter(store, func(c *gin.Context) {
		t.Fatal("handler must not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-3")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIdempotency_ConcurrentDuplicateRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil)

	var router *gin.Engine
	var inner *httptest.ResponseRecorder
	router = newIdempotentRouter(store, func(c *gin.Context) {
		// the same key arrives while the first request is still running
		req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-4")
		inner = httptest.NewRecorder()
		router.ServeHTTP(inner, req)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/deposit", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-4")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, "REQ_003", decodeError(t, inner).ErrorCode)
}

func TestIdempotency_SavesAfterClientDisconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	body := `{"amount":20}`
	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "alice:deposit:k-5").Return(nil, nil)
	store.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, record *domain.IdempotencyRecord) error {
			assert.NoError(t, ctx.Err(), "the committed response is stored even if the client is gone")
			assert.Equal(t, domain.HashRequestBody([]byte(body)), record.RequestHash)
			return nil
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := newIdempotentRouter(store, func(c *gin.Context) {
		got, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(got), "the handler still sees the body")
		cancel()
		response.OK(c, gin.H{"balance": 20})
	})

	req := httptest.NewRequest(http.MethodPost, "/deposit", strings.NewReader(body)).WithContext(ctx)
	req.Header.Set(HeaderIdempotencyKey, "k-5")
	router.ServeHTTP(httptest.NewRecorder(), req)
}

func TestIdempotency_DifferentBodyRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockIdempotencyStore(ctrl)
	store.EXPECT().Get(gomock.Any(), "alice:deposit:k-6").Return(&domain.IdempotencyRecord{
		Key:          "alice:deposit:k-6",
		RequestHash:  domain.HashRequestBody([]byte(`{"amount":20}`)),
		StatusCode:   http.StatusOK,
		ResponseJSON: []byte(`{"data":{"balance":20}}`),
	}, nil).Times(2)

	router := newIdempotentRouter(store, func(c *gin.Context) {
		t.Fatal("handler must not run for a stored key")
	})

	req := httptest.NewRequest(http.MethodPost, "/deposit", strings.NewReader(`{"amount":2000}`))
	req.Header.Set(HeaderIdempotencyKey, "k-6")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeIdempotencyReuse, decodeError(t, w).ErrorCode)
	assert.Empty(t, w.Header().Get(HeaderReplayed))

	req = httptest.NewRequest(http.MethodPost, "/deposit", strings.NewReader(`{"amount":20}`))
	req.Header.Set(HeaderIdempotencyKey, "k-6")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get(HeaderReplayed))
}

func TestIdempotency_BodyTooLarge(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := gin.New()
	router.POST("/deposit", MaxBodySize(8), withAccount("alice"),
		Idempotency(mocks.NewMockIdempotencyStore(ctrl), "deposit", zerolog.Nop()),
		func(c *gin.Context) { t.Fatal("handler must not run") })

	req := httptest.NewRequest(http.MethodPost, "/deposit", strings.NewReader(`{"amount":123456789}`))
	req.ContentLength = -1 // skip the Content-Length precheck
	req.Header.Set(HeaderIdempotencyKey, "k-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
