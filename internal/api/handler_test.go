package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/document"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/store"
	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/submit"
)

type fakeSubmitter struct {
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, p submit.Payload) (*submit.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &submit.Result{ApplicationID: p.ApplicationID, Status: "pending"}, nil
}

func newTestServer(t *testing.T, submitter submit.Submitter) *httptest.Server {
	t.Helper()
	drafts := store.NewDraftStore(store.NewMemoryKV())
	sessions, err := NewSessionRegistry(drafts, document.NewPipeline(nil, nil), submitter)
	require.NoError(t, err)

	h, err := New(sessions, nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func createSession(t *testing.T, srv *httptest.Server) SessionResponse {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sess SessionResponse
	require.NoError(t, json.Unmarshal(body, &sess))
	require.NotEmpty(t, sess.SessionID)
	return sess
}

func sessionURL(srv *httptest.Server, id, suffix string) string {
	return srv.URL + "/api/v1/sessions/" + id + suffix
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok"`)
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t, nil)

	sess := createSession(t, srv)
	assert.Equal(t, 1, sess.Step)
	assert.Equal(t, model.StatusDraft, sess.Status)
	assert.Equal(t, []model.DocumentRole{model.RolePassport, model.RolePhoto}, sess.RequiredDocuments)

	t.Run("reopening by id returns the same session", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sessions",
			CreateSessionRequest{SessionID: sess.SessionID})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var again SessionResponse
		require.NoError(t, json.Unmarshal(body, &again))
		assert.Equal(t, sess.SessionID, again.SessionID)
	})
}

func TestGetSession_Unknown(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := doJSON(t, http.MethodGet, sessionURL(srv, "nope", ""), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateDraftAndAdvance(t *testing.T) {
	srv := newTestServer(t, nil)
	sess := createSession(t, srv)

	t.Run("advance without a selection is refused with field errors", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/advance"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got SessionResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, 1, got.Step)
		assert.Contains(t, got.StepErrors, "visaType")
	})

	t.Run("a complete selection advances", func(t *testing.T) {
		update := map[string]any{
			"visaSelection": model.VisaSelection{
				VisaType:         model.VisaGeneral,
				VisaDurationType: model.DurationSingle90,
			},
		}
		resp, _ := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/draft"), update)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/advance"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got SessionResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, 2, got.Step)
	})

	t.Run("retreat returns to step one", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/retreat"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got SessionResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, 1, got.Step)
	})

	t.Run("jump to a step in range", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/jump"), JumpRequest{Step: 3})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got SessionResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, 3, got.Step)
	})

	t.Run("jump out of range is a 400", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/jump"), JumpRequest{Step: 9})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func multipartUpload(t *testing.T, url string, files map[string]struct {
	name, mime string
	data       []byte
}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.name))
		hdr.Set("Content-Type", f.mime)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestUploadDocuments(t *testing.T) {
	srv := newTestServer(t, nil)
	sess := createSession(t, srv)
	url := sessionURL(srv, sess.SessionID, "/documents")

	t.Run("accepted uploads return 202 and eventually land", func(t *testing.T) {
		resp, _ := multipartUpload(t, url, map[string]struct {
			name, mime string
			data       []byte
		}{
			"passport": {name: "p.jpg", mime: "image/jpeg", data: []byte("scan")},
			"photo":    {name: "f.png", mime: "image/png", data: []byte("photo")},
		})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		assert.Eventually(t, func() bool {
			resp, body := doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, ""), nil)
			if resp.StatusCode != http.StatusOK {
				return false
			}
			var got SessionResponse
			if err := json.Unmarshal(body, &got); err != nil {
				return false
			}
			return got.Documents[model.RolePassport].FileName == "p.jpg" &&
				got.Documents[model.RolePhoto].FileName == "f.png"
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("a disallowed type yields per-role field errors", func(t *testing.T) {
		resp, body := multipartUpload(t, url, map[string]struct {
			name, mime string
			data       []byte
		}{
			"photo": {name: "f.pdf", mime: "application/pdf", data: []byte("doc")},
		})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var errResp ErrorResponse
		require.NoError(t, json.Unmarshal(body, &errResp))
		assert.Contains(t, errResp.Fields, "photo")
	})

	t.Run("empty form is a 400", func(t *testing.T) {
		resp, _ := multipartUpload(t, url, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRemoveDocument(t *testing.T) {
	srv := newTestServer(t, nil)
	sess := createSession(t, srv)

	resp, _ := multipartUpload(t, sessionURL(srv, sess.SessionID, "/documents"), map[string]struct {
		name, mime string
		data       []byte
	}{
		"passport": {name: "p.jpg", mime: "image/jpeg", data: []byte("scan")},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, ""), nil)
		var got SessionResponse
		return json.Unmarshal(body, &got) == nil && got.Documents[model.RolePassport].FileName == "p.jpg"
	}, 5*time.Second, 20*time.Millisecond)

	resp, body := doJSON(t, http.MethodDelete, sessionURL(srv, sess.SessionID, "/documents/passport"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got SessionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.NotContains(t, got.Documents, model.RolePassport)
}

func TestPrice(t *testing.T) {
	srv := newTestServer(t, nil)
	sess := createSession(t, srv)

	update := map[string]any{
		"visaSelection": model.VisaSelection{
			VisaType:         model.VisaGeneral,
			VisaDurationType: model.DurationSingle90,
		},
		"additionalServices": []string{"FAST_TRACK_ARRIVAL"},
	}
	resp, _ := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/draft"), update)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("itemized quote", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, "/price"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var price PriceResponse
		require.NoError(t, json.Unmarshal(body, &price))
		assert.Equal(t, "KRW", string(price.Currency))
		assert.True(t, price.Total.Equal(decimal.NewFromInt(94500)), "total = %s", price.Total)
		assert.Nil(t, price.DisplayTotal)
	})

	t.Run("display conversion to USD", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, "/price?currency=usd"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var price PriceResponse
		require.NoError(t, json.Unmarshal(body, &price))
		require.NotNil(t, price.DisplayTotal)
		assert.Equal(t, "USD", string(price.DisplayCurrency))
		assert.True(t, price.DisplayTotal.Equal(decimal.NewFromInt(70)), "display total = %s", price.DisplayTotal)
		// The stored total stays in the pricing currency.
		assert.True(t, price.Total.Equal(decimal.NewFromInt(94500)))
	})
}

func fillAndReview(t *testing.T, srv *httptest.Server, sessionID string) {
	t.Helper()
	update := map[string]any{
		"visaSelection": model.VisaSelection{
			VisaType:         model.VisaGeneral,
			VisaDurationType: model.DurationSingle90,
		},
		"personalInfo": model.PersonalInfo{
			FullName:      "HONG GILDONG",
			Email:         "hong@example.com",
			Phone:         "+82 10-1234-5678",
			Address:       "123 Teheran-ro, Seoul",
			PhoneOfFriend: "+84 90 123 4567",
		},
		"travelInfo": model.TravelInfo{
			EntryDate: time.Now().AddDate(0, 0, 14).Format("2006-01-02"),
			EntryPort: "SGN",
		},
	}
	resp, _ := doJSON(t, http.MethodPost, sessionURL(srv, sessionID, "/draft"), update)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = multipartUpload(t, sessionURL(srv, sessionID, "/documents"), map[string]struct {
		name, mime string
		data       []byte
	}{
		"passport": {name: "p.jpg", mime: "image/jpeg", data: []byte("scan")},
		"photo":    {name: "f.png", mime: "image/png", data: []byte("photo")},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, body := doJSON(t, http.MethodGet, sessionURL(srv, sessionID, ""), nil)
		var got SessionResponse
		return json.Unmarshal(body, &got) == nil &&
			got.Documents[model.RolePassport].FileName != "" &&
			got.Documents[model.RolePhoto].FileName != ""
	}, 5*time.Second, 20*time.Millisecond)

	for i := 0; i < 4; i++ {
		resp, _ := doJSON(t, http.MethodPost, sessionURL(srv, sessionID, "/advance"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	_, body := doJSON(t, http.MethodGet, sessionURL(srv, sessionID, ""), nil)
	var got SessionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, 5, got.Step, "session should be at the review step")
}

func TestSubmitFlow(t *testing.T) {
	srv := newTestServer(t, &fakeSubmitter{})
	sess := createSession(t, srv)
	fillAndReview(t, srv, sess.SessionID)

	t.Run("receipt before submission is a conflict", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, "/receipt"), nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("terms must be accepted", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/submit"), SubmitRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("successful submission", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/submit"),
			SubmitRequest{TermsAccepted: true})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result SubmissionResponse
		require.NoError(t, json.Unmarshal(body, &result))
		assert.True(t, strings.HasPrefix(result.ApplicationID, "VN"))
		assert.Equal(t, "pending", result.Status)
	})

	t.Run("confirmation state and receipt", func(t *testing.T) {
		_, body := doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, ""), nil)
		var got SessionResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, 6, got.Step)
		assert.Equal(t, model.StatusSubmitted, got.Status)

		resp, receiptBody := doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, "/receipt"), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, string(receiptBody), "Visa Application Receipt")
	})
}

func TestSubmit_BackendRejection(t *testing.T) {
	srv := newTestServer(t, &fakeSubmitter{err: &submit.Error{
		Message: "validation failed",
		Fields:  map[string]string{"email": "a valid email address is required"},
	}})
	sess := createSession(t, srv)
	fillAndReview(t, srv, sess.SessionID)

	resp, body := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/submit"),
		SubmitRequest{TermsAccepted: true})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "validation failed", errResp.Error)
	assert.Contains(t, errResp.Fields, "email")

	// The draft stays on review for a retry.
	_, body = doJSON(t, http.MethodGet, sessionURL(srv, sess.SessionID, ""), nil)
	var got SessionResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 5, got.Step)
	assert.Equal(t, model.StatusDraft, got.Status)
}

func TestSubmit_OffReviewStep(t *testing.T) {
	srv := newTestServer(t, &fakeSubmitter{})
	sess := createSession(t, srv)

	resp, _ := doJSON(t, http.MethodPost, sessionURL(srv, sess.SessionID, "/submit"),
		SubmitRequest{TermsAccepted: true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionsEndpoint_WithoutStore(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/submissions", submit.Payload{})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/submissions/VN1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestValidatePayload(t *testing.T) {
	fields := validatePayload(submit.Payload{})
	assert.Contains(t, fields, "applicationId")
	assert.Contains(t, fields, "visaType")
	assert.Contains(t, fields, "fullName")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "entryDate")

	fields = validatePayload(submit.Payload{
		ApplicationID: "VN1",
		VisaType:      model.VisaGeneral,
		FullName:      "HONG GILDONG",
		Email:         "hong@example.com",
		EntryDate:     "2026-10-01",
	})
	assert.Empty(t, fields)
}
