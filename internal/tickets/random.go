package tickets

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/mazen160/go-random"
)

// RandomAPI generates the public and secret halves of a match code.
//
// note: fault injection point
type RandomAPI interface {
	// MatchCode returns a short human friendly public code, ex. ARN042.
	MatchCode() (string, error)
	// Token returns a 16 character alphanumeric secret.
	Token() (string, error)
}

const tokenLength = 16

var tokenRegex = regexp.MustCompile(`^[A-Za-z0-9]{16}$`)

type defaultRandomAPI struct{}

func (defaultRandomAPI) MatchCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ARN%03d", n.Int64()), nil
}

func (defaultRandomAPI) Token() (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		token, err := random.String(tokenLength)
		if err != nil {
			return "", err
		}
		if tokenRegex.MatchString(token) {
			return token, nil
		}
	}
	return "", fmt.Errorf("could not generate an alphanumeric token")
}
