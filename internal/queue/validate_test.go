package queue

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qms/queue-core/internal/models"
)

func TestRegistrationValidation(t *testing.T) {
	valid := Registration{
		ServiceID:     "svc-a",
		RequesterName: "Siti Rahma",
		NationalID:    "3174012345678901",
		Phone:         "081234567890",
		Email:         "siti@example.com",
	}
	require.NoError(t, ValidateStruct(valid))

	bad := valid
	bad.RequesterName = ""
	bad.NationalID = "12345"
	bad.Email = "not-an-email"
	err := ValidateStruct(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	joined := strings.Join(verr.Fields, "|")
	assert.Contains(t, joined, "requester_name is required")
	assert.Contains(t, joined, "national_id must be exactly 16 characters long")
	assert.Contains(t, joined, "email must be a valid email address")

	for _, nid := range []string{"+317401234567890", "-317401234567890", "31740123456789.0", "3174O12345678901"} {
		reg := valid
		reg.NationalID = nid
		err := ValidateStruct(reg)
		require.Error(t, err, nid)
		assert.Contains(t, err.Error(), "national_id must contain digits only", nid)
	}
}

func TestRegistrationSource(t *testing.T) {
	reg := Registration{ServiceID: "svc-a", RequesterName: "Budi", Source: models.SourceKiosk}
	require.NoError(t, ValidateStruct(reg))

	reg.Source = "fax"
	err := ValidateStruct(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source must be one of [online kiosk]")
}

func TestRegistrationDocuments(t *testing.T) {
	reg := Registration{ServiceID: "svc-a", RequesterName: "Budi"}
	for i := 0; i < MaxDocuments+1; i++ {
		reg.Documents = append(reg.Documents, DocumentInput{Name: "ktp.pdf", ContentType: "application/pdf", SizeBytes: 1024, StorageKey: "k"})
	}
	err := ValidateStruct(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documents must have at most 5 items")

	reg.Documents = []DocumentInput{{Name: "scan.gif", ContentType: "image/gif", SizeBytes: MaxDocumentBytes + 1, StorageKey: "k"}}
	err = ValidateStruct(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content_type must be one of")
	assert.Contains(t, err.Error(), "size_bytes must be at most")
}

func TestRegistrationNormalize(t *testing.T) {
	reg := Registration{ServiceID: " svc-a ", RequesterName: "  Budi ", Source: " KIOSK"}
	reg.normalize()
	assert.Equal(t, "svc-a", reg.ServiceID)
	assert.Equal(t, "Budi", reg.RequesterName)
	assert.Equal(t, models.SourceKiosk, reg.Source)

	empty := Registration{}
	empty.normalize()
	assert.Equal(t, models.SourceOnline, empty.Source)
}
