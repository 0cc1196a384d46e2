package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"compliance-gateway/internal/webhook"
	"compliance-gateway/internal/webhook/handler/mocks"
	dErrors "compliance-gateway/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/webhook-mocks.go -package=mocks Processor
type WebhookHandlerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *WebhookHandlerSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestWebhookHandlerSuite(t *testing.T) {
	suite.Run(t, new(WebhookHandlerSuite))
}

func newTestRouter(t *testing.T) (chi.Router, *mocks.MockProcessor) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockProcessor := mocks.NewMockProcessor(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockProcessor, logger).Register(r)
	return r, mockProcessor
}

func (s *WebhookHandlerSuite) post(r chi.Router, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/alm", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func (s *WebhookHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *WebhookHandlerSuite) TestAcknowledgesProcessedPayload() {
	r, mockProcessor := newTestRouter(s.T())
	body := []byte(`{"events":[]}`)

	mockProcessor.EXPECT().
		Process(gomock.Any(), body, "sig-value").
		Return(webhook.Receipt{Admitted: 1}, nil)

	rec := s.post(r, body, map[string]string{"X-ALM-Signature": "sig-value"})

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(map[string]string{"status": "received"}, s.decode(rec))
}

func (s *WebhookHandlerSuite) TestAcknowledgesEvenWhenProcessingStalled() {
	// Downstream failures never surface to the sender; only the receipt shape
	// matters here.
	r, mockProcessor := newTestRouter(s.T())

	mockProcessor.EXPECT().
		Process(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(webhook.Receipt{Anomalies: 2}, nil)

	rec := s.post(r, []byte(`{"events":[{}]}`), nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("received", s.decode(rec)["status"])
}

func (s *WebhookHandlerSuite) TestEchoesChallenge() {
	r, mockProcessor := newTestRouter(s.T())

	mockProcessor.EXPECT().
		Process(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(webhook.Receipt{Challenge: "abc123"}, nil)

	rec := s.post(r, []byte(`{"challenge":"abc123"}`), nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal(map[string]string{"challenge": "abc123"}, s.decode(rec))
}

func (s *WebhookHandlerSuite) TestRejectsBadSignature() {
	r, mockProcessor := newTestRouter(s.T())

	mockProcessor.EXPECT().
		Process(gomock.Any(), gomock.Any(), "bogus").
		Return(webhook.Receipt{}, dErrors.New(dErrors.CodeSignatureMismatch, "signature mismatch"))

	rec := s.post(r, []byte(`{}`), map[string]string{"X-Webhook-Signature": "bogus"})

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(string(dErrors.CodeSignatureMismatch), s.decode(rec)["error"])
}

func (s *WebhookHandlerSuite) TestRejectsMissingSignature() {
	r, mockProcessor := newTestRouter(s.T())

	mockProcessor.EXPECT().
		Process(gomock.Any(), gomock.Any(), "").
		Return(webhook.Receipt{}, dErrors.New(dErrors.CodeSignatureMissing, "signature required"))

	rec := s.post(r, []byte(`{}`), nil)

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(string(dErrors.CodeSignatureMissing), s.decode(rec)["error"])
}

func (s *WebhookHandlerSuite) TestPrefersPlatformSignatureHeader() {
	r, mockProcessor := newTestRouter(s.T())

	mockProcessor.EXPECT().
		Process(gomock.Any(), gomock.Any(), "primary").
		Return(webhook.Receipt{}, nil)

	rec := s.post(r, []byte(`{}`), map[string]string{
		"X-ALM-Signature":     "primary",
		"X-Webhook-Signature": "secondary",
	})

	s.Equal(http.StatusOK, rec.Code)
}
