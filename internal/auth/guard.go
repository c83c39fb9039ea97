package auth

import "golang.org/x/crypto/bcrypt"

// Guard gates session connects behind an optional shared secret. The secret
// is hashed once at startup; an empty secret means open access.
type Guard struct {
	hash []byte
}

func NewGuard(secret string) *Guard {
	if secret == "" {
		return &Guard{}
	}
	// secret max size is 72 bytes because of bcrypt limit
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return &Guard{hash}
}

func (g *Guard) Open() bool { return len(g.hash) == 0 }

func (g *Guard) Validate(secret string) bool {
	if g.Open() {
		return true
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(secret)) == nil
}
