package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastParams keeps the memory cost at the floor so tests stay quick.
func fastParams() Params {
	return Params{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestNewHasher_RejectsWeakParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"memory below floor", func(p *Params) { p.Memory = 1024 }},
		{"zero time", func(p *Params) { p.Time = 0 }},
		{"zero parallelism", func(p *Params) { p.Parallelism = 0 }},
		{"short salt", func(p *Params) { p.SaltLength = 8 }},
		{"short key", func(p *Params) { p.KeyLength = 8 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fastParams()
			tt.mutate(&p)
			_, err := NewHasher(p)
			assert.Error(t, err)
		})
	}
}

func TestHasher_HashAndVerify(t *testing.T) {
	h, err := NewHasher(fastParams())
	require.NoError(t, err)

	encoded, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$"))

	ok, err := h.Verify("correct horse battery", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_SaltsDiffer(t *testing.T) {
	h, err := NewHasher(fastParams())
	require.NoError(t, err)

	a, err := h.Hash("same input")
	require.NoError(t, err)
	b, err := h.Hash("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHasher_VerifyRejectsMalformed(t *testing.T) {
	h, err := NewHasher(fastParams())
	require.NoError(t, err)

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"missing params", "$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA"},
		{"truncated", "$argon2id$v=19$m=8192,t=1,p=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Verify("anything", tt.encoded)
			assert.Error(t, err)
		})
	}
}

func TestHasher_NeedsRehash(t *testing.T) {
	weak, err := NewHasher(fastParams())
	require.NoError(t, err)
	encoded, err := weak.Hash("pw goes here")
	require.NoError(t, err)

	needs, err := weak.NeedsRehash(encoded)
	require.NoError(t, err)
	assert.False(t, needs, "hash at current params should not need rehash")

	stronger := fastParams()
	stronger.Memory = 64 * 1024
	h2, err := NewHasher(stronger)
	require.NoError(t, err)

	needs, err = h2.NeedsRehash(encoded)
	require.NoError(t, err)
	assert.True(t, needs, "raising memory cost should flag old hashes")
}
