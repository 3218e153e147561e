// Package identity validates the 8-character ids that the tracker site uses to address a team.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidIdentity = errors.New("invalid team id format")

var identityPattern = regexp.MustCompile(`^[a-z0-9]{8}$`)

// TrackedIdentity is a validated, lowercase tracker id.
type TrackedIdentity string

// Parse lowercases raw and checks it is exactly 8 alphanumeric characters.
func Parse(raw string) (TrackedIdentity, error) {
	lowered := strings.ToLower(raw)
	if !identityPattern.MatchString(lowered) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, raw)
	}
	return TrackedIdentity(lowered), nil
}

func (id TrackedIdentity) String() string {
	return string(id)
}

// ProfileURL returns the tracker page of id under base, ex. https://tracker.ftgames.com/?id=abcd1234
func (id TrackedIdentity) ProfileURL(base string) string {
	return fmt.Sprintf("%s/?id=%s", strings.TrimRight(base, "/"), id)
}
