package employees

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and checks salted one-way password digests.
type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher. A non-positive cost selects bcrypt.DefaultCost.
func NewHasher(cost int) Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return Hasher{cost: cost}
}

// Hash digests a plaintext password.
func (h Hasher) Hash(plain string) (string, error) {
	cost := h.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare checks plain against hash.
func (h Hasher) Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
