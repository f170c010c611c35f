package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"unauthorized", Unauthorized(""), http.StatusUnauthorized},
		{"halted", Halted("Staking"), http.StatusServiceUnavailable},
		{"not found", NotFound("Category", "Hair"), http.StatusNotFound},
		{"duplicate", Duplicate("Category", "Hair"), http.StatusConflict},
		{"precondition", PreconditionFailed("not revealed"), http.StatusUnprocessableEntity},
		{"external", ExternalFailure("nft", nil), http.StatusBadGateway},
		{"corrupt", StorageCorrupt("broken"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", tt.err.StatusCode, tt.want)
			}
			if tt.err.Code != string(tt.err.Kind) {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.err.Kind)
			}
		})
	}
}

func TestHaltedMessage(t *testing.T) {
	if got := Halted("Staking").Error(); got != "Staking has been halted" {
		t.Errorf("got %q", got)
	}
}

func TestAsThroughWrap(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Duplicate("Variant", "Gold"))
	if !IsKind(wrapped, KindDuplicate) {
		t.Fatal("expected duplicate kind through wrap")
	}
	if IsKind(wrapped, KindNotFound) {
		t.Fatal("unexpected kind match")
	}
}

func TestToJSON(t *testing.T) {
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(LimitExceeded("You can only stake up to 5 skulls").ToJSON(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Success || body.Error.Code != "LIMIT_EXCEEDED" {
		t.Errorf("unexpected body %+v", body)
	}
}
