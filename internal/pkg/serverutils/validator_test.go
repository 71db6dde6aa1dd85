package serverutils

import (
	"errors"
	"strings"
	"testing"
)

type sampleRequest struct {
	Question string `validate:"required"`
	TopK     int    `validate:"omitempty,min=1"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     sampleRequest
		wantErr bool
	}{
		{"valid", sampleRequest{Question: "what is go", TopK: 3}, false},
		{"missing question", sampleRequest{TopK: 3}, true},
		{"zero top_k allowed by omitempty", sampleRequest{Question: "q"}, false},
		{"negative top_k", sampleRequest{Question: "q", TopK: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if len(ve.Fields) == 0 {
				t.Error("ValidationError carries no fields")
			}
		})
	}
}

func TestValidationErrorMessageNamesFields(t *testing.T) {
	err := ValidateRequest(sampleRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Question") {
		t.Errorf("error %q does not name the failing field", err.Error())
	}
}
