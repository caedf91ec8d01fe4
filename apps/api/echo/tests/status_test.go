package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/ratiba/core/status"
)

func TestStatusAPI_authRequired(t *testing.T) {
	tests := []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/v1/status/evt1/attendance"},
		{name: "update", method: http.MethodPut, path: "/v1/status/evt1/attendance"},
	}
	for _, tt := range tests {
		tt.wantCode = http.StatusUnauthorized
		tt.wantData = marchallObj(t, errMissingToken)

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestStatusAPI_retrieve(t *testing.T) {
	token := getToken(t, "teacher1")

	t.Run("unknown field", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: status.ErrNotFound.Error()}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/status/evt404/attendance", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("stored field", func(t *testing.T) {
		if _, err := statusStore.WriteStatus(context.Background(), "evt1", "attendance", status.ValueMissed); err != nil {
			t.Fatalf("WriteStatus(): %v", err)
		}

		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{
				"entity_id": "evt1",
				"field_key": "attendance",
				"value":     "missed",
			}),
		}
		req, rec := newAuthRequest(http.MethodGet, "/v1/status/evt1/attendance", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func TestStatusAPI_update(t *testing.T) {
	token := getToken(t, "teacher1")

	t.Run("write is accepted and visible immediately", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"value": "done"})
		tt := httpTest{
			wantCode: http.StatusAccepted,
			wantData: marchallObj(t, map[string]interface{}{
				"entity_id": "evt2",
				"field_key": "attendance",
				"value":     "done",
				"pending":   true,
			}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/v1/status/evt2/attendance", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		// the optimistic value is readable with zero delay
		req, rec = newAuthRequest(http.MethodGet, "/v1/status/evt2/attendance", token)
		app.ServeHTTP(rec, req)
		var res struct {
			Value status.Value `json:"value"`
		}
		unmarshalObj(t, rec, &res)
		if res.Value != status.ValueDone {
			t.Errorf("value = %v, want %v", res.Value, status.ValueDone)
		}

		// and the store converges
		deadline := time.Now().Add(2 * time.Second)
		for {
			fld, err := statusStore.ReadStatus(context.Background(), "evt2", "attendance")
			if err == nil && fld.Value == status.ValueDone {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("store never converged: %v, %v", fld.Value, err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	})

	t.Run("synonyms are canonicalized", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"value": "Present"})
		tt := httpTest{
			wantCode: http.StatusAccepted,
			wantData: marchallObj(t, map[string]interface{}{
				"entity_id": "evt3",
				"field_key": "attendance",
				"value":     "done",
				"pending":   true,
			}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/v1/status/evt3/attendance", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("invalid value", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"value": "explode"})
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: status.ErrInvalidValue.Error()}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/v1/status/evt4/attendance", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
