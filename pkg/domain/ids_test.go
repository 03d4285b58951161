package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "civicportal/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseTenantID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseTenantID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})
}

func TestParseRecordID(t *testing.T) {
	id, err := ParseRecordID("42")
	require.NoError(t, err)
	assert.Equal(t, RecordID(42), id)
	assert.Equal(t, "42", id.String())

	for _, bad := range []string{"", "0", "-3", "4x", "9223372036854775808"} {
		_, err := ParseRecordID(bad)
		require.Error(t, err, bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), bad)
	}
}

// TestTypeDistinction verifies the compiler enforces type safety.
func TestTypeDistinction(t *testing.T) {
	userID := UserID(uuid.New())
	tenantID := TenantID(uuid.New())

	// var _ UserID = tenantID   // compile error
	// var _ TenantID = userID   // compile error

	assert.NotEqual(t, uuid.UUID(userID), uuid.UUID(tenantID))
	assert.True(t, TenantID{}.IsNil())
	assert.False(t, tenantID.IsNil())
}

func TestTenantID_JSONRoundTripsAsString(t *testing.T) {
	tenantID := MustTenantID("00000000-0000-0000-0000-000000000001")

	raw, err := json.Marshal(map[string]TenantID{"tenant_id": tenantID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tenant_id":"00000000-0000-0000-0000-000000000001"}`, string(raw))

	var decoded map[string]TenantID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, tenantID, decoded["tenant_id"])

	assert.Error(t, json.Unmarshal([]byte(`{"tenant_id":"00000000-0000-0000-0000-000000000000"}`), &decoded))
}
