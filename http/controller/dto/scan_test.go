package dto_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/autonmap/scan-orchestrator/entity"
	"github.com/autonmap/scan-orchestrator/http/controller/dto"
)

func strptr(s string) *string {
	return &s
}

func validRequest() dto.CreateScanRequestDTO {
	return dto.CreateScanRequestDTO{
		Targets: []string{"192.0.2.10"},
		Profile: entity.ProfileBasicVersionDetection,
	}
}

func TestValidateAcceptsMinimalRequest(t *testing.T) {
	t.Parallel()
	req := validRequest()
	require.NoError(t, req.Validate())
	require.Equal(t, "T3", req.Timing())
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*dto.CreateScanRequestDTO)
		wantErr string
	}{
		{
			name:    "no targets",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.Targets = nil },
			wantErr: "targets must not be empty",
		},
		{
			name: "too many targets",
			mutate: func(r *dto.CreateScanRequestDTO) {
				r.Targets = make([]string, dto.MaxTargets+1)
				for i := range r.Targets {
					r.Targets[i] = "192.0.2.10"
				}
			},
			wantErr: "at most 50 targets",
		},
		{
			name:    "unknown profile",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.Profile = "super_scan" },
			wantErr: "unsupported scan profile",
		},
		{
			name:    "ports with shell metacharacters",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.Ports = strptr("80;rm -rf /") },
			wantErr: "ports filter",
		},
		{
			name:    "ports with spaces",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.Ports = strptr("80, 443") },
			wantErr: "ports filter",
		},
		{
			name:    "invalid timing template",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.TimingTemplate = strptr("T9") },
			wantErr: "timing template",
		},
		{
			name:    "oversized notes",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.Notes = strptr(strings.Repeat("x", dto.MaxNotesLength+1)) },
			wantErr: "notes",
		},
		{
			name:    "oversized multibyte notes",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.Notes = strptr(strings.Repeat("é", dto.MaxNotesLength+1)) },
			wantErr: "notes",
		},
		{
			name:    "callback without scheme",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.CallbackURL = strptr("callbacks.example/hook") },
			wantErr: "callback_url",
		},
		{
			name:    "callback with ftp scheme",
			mutate:  func(r *dto.CreateScanRequestDTO) { r.CallbackURL = strptr("ftp://callbacks.example/hook") },
			wantErr: "callback_url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateBoundaryValues(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.Targets = make([]string, dto.MaxTargets)
	for i := range req.Targets {
		req.Targets[i] = "192.0.2.10"
	}
	req.Ports = strptr("1-1024,8080")
	req.TimingTemplate = strptr("T5")
	req.CallbackURL = strptr("https://callbacks.example/hook")
	// The notes limit counts characters, not bytes.
	req.Notes = strptr(strings.Repeat("é", dto.MaxNotesLength))
	require.NoError(t, req.Validate())
	require.Equal(t, "T5", req.Timing())
}
