package deletion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Minute)

	original := &Proposal{
		Category:       "weight",
		Mode:           Hard,
		StorageIndices: []int{0, 2, 7},
		EntryIDs:       []string{"a", "b", "c"},
	}

	token, err := codec.Encode("user-1", original)
	require.NoError(t, err)

	decoded, err := codec.Decode("user-1", token)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestTokenSurvivesAwkwardCategoryNames(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Minute)

	// Names containing the old delimiter characters must round-trip
	// unambiguously.
	original := &Proposal{
		Category:       "study_hours,deep_work",
		Mode:           Soft,
		StorageIndices: []int{1},
		EntryIDs:       []string{""},
	}

	token, err := codec.Encode("user-1", original)
	require.NoError(t, err)

	decoded, err := codec.Decode("user-1", token)
	require.NoError(t, err)
	assert.Equal(t, "study_hours,deep_work", decoded.Category)
}

func TestTokenRejectsWrongUser(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Minute)

	token, err := codec.Encode("user-1", &Proposal{Category: "weight", Mode: Soft})
	require.NoError(t, err)

	_, err = codec.Decode("user-2", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsTampering(t *testing.T) {
	codec := NewTokenCodec("test-secret", time.Minute)
	other := NewTokenCodec("other-secret", time.Minute)

	token, err := other.Encode("user-1", &Proposal{Category: "weight", Mode: Hard})
	require.NoError(t, err)

	_, err = codec.Decode("user-1", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpires(t *testing.T) {
	codec := NewTokenCodec("test-secret", -time.Minute) // negative ttl would default
	assert.Equal(t, DefaultTokenTTL, codec.ttl)

	expired := &TokenCodec{secretKey: []byte("test-secret"), ttl: -time.Minute}
	token, err := expired.Encode("user-1", &Proposal{Category: "weight", Mode: Soft})
	require.NoError(t, err)

	_, err = expired.Decode("user-1", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
