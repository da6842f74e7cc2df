package handler

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vivaha/internal/registration/models"
	dErrors "vivaha/pkg/domain-errors"
)

func TestVerifyRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		req      VerifyRequest
		wantCode dErrors.Code
	}{
		{
			name: "valid",
			req:  VerifyRequest{CertificateNumber: "MH-2025-00042", RegistrationDate: "2025-06-01"},
		},
		{
			name: "trims whitespace",
			req:  VerifyRequest{CertificateNumber: "  MH-2025-00042  ", RegistrationDate: " 2025-06-01 "},
		},
		{
			name:     "missing certificate number",
			req:      VerifyRequest{RegistrationDate: "2025-06-01"},
			wantCode: dErrors.CodeValidation,
		},
		{
			name:     "certificate number too long",
			req:      VerifyRequest{CertificateNumber: strings.Repeat("x", 65), RegistrationDate: "2025-06-01"},
			wantCode: dErrors.CodeValidation,
		},
		{
			name:     "missing registration date",
			req:      VerifyRequest{CertificateNumber: "MH-2025-00042"},
			wantCode: dErrors.CodeValidation,
		},
		{
			name:     "malformed registration date",
			req:      VerifyRequest{CertificateNumber: "MH-2025-00042", RegistrationDate: "01/06/2025"},
			wantCode: dErrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantCode != "" {
				assert.True(t, dErrors.HasCode(err, tt.wantCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), tt.req.ParsedRegistrationDate())
		})
	}
}

func TestUpdateApplicationRequestValidate(t *testing.T) {
	t.Run("parses status", func(t *testing.T) {
		status := " submitted "
		req := UpdateApplicationRequest{Status: &status}
		require.NoError(t, req.Validate())
		parsed := req.ParsedUpdate()
		require.NotNil(t, parsed.Status)
		assert.Equal(t, models.ApplicationStatusSubmitted, *parsed.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		status := "archived"
		req := UpdateApplicationRequest{Status: &status}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	t.Run("rejects progress out of range", func(t *testing.T) {
		progress := 140
		req := UpdateApplicationRequest{Progress: &progress}
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	t.Run("empty update is valid", func(t *testing.T) {
		req := UpdateApplicationRequest{}
		assert.NoError(t, req.Validate())
	})
}

func TestRejectDocumentRequestValidate(t *testing.T) {
	req := RejectDocumentRequest{Reason: "  blurry scan  "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "blurry scan", req.Reason)

	empty := RejectDocumentRequest{}
	assert.True(t, dErrors.HasCode(empty.Validate(), dErrors.CodeValidation))

	long := RejectDocumentRequest{Reason: strings.Repeat("x", 501)}
	assert.True(t, dErrors.HasCode(long.Validate(), dErrors.CodeValidation))
}

func TestReuploadDocumentRequestValidate(t *testing.T) {
	req := ReuploadDocumentRequest{Content: []byte("scan"), ContentType: "image/png"}
	require.NoError(t, req.Validate())

	empty := ReuploadDocumentRequest{ContentType: "image/png"}
	assert.True(t, dErrors.HasCode(empty.Validate(), dErrors.CodeValidation))
}
