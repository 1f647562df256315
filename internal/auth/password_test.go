package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordService_HashAndVerify(t *testing.T) {
	ps := NewPasswordServiceWithCost(bcrypt.MinCost)

	hash, err := ps.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.NoError(t, ps.Verify(hash, "correct horse battery staple"))
	assert.Error(t, ps.Verify(hash, "wrong password"))
}

func TestPasswordService_HashesAreSalted(t *testing.T) {
	ps := NewPasswordServiceWithCost(bcrypt.MinCost)

	h1, err := ps.Hash("samepassword")
	require.NoError(t, err)
	h2, err := ps.Hash("samepassword")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestPasswordService_RejectsOverlongPassword(t *testing.T) {
	ps := NewPasswordServiceWithCost(bcrypt.MinCost)

	_, err := ps.Hash(strings.Repeat("a", 73))
	assert.Error(t, err)
}

func TestPasswordService_VerifyGarbageHash(t *testing.T) {
	ps := NewPasswordServiceWithCost(bcrypt.MinCost)

	assert.Error(t, ps.Verify("not-a-bcrypt-hash", "anything"))
}
