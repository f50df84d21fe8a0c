package main

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"gitea.kood.tech/petrkubec/genre-match/internal/store"
)

const (
	gravatarSecure   = "https://secure.gravatar.com/avatar"
	gravatarInsecure = "http://www.gravatar.com/avatar"
)

// gravatarURL returns the identicon-backed Gravatar for u. A stored
// avatar_hash replaces the hash of the email.
func gravatarURL(u *store.User, secure bool, size int) string {
	base := gravatarInsecure
	if secure {
		base = gravatarSecure
	}
	hash := u.AvatarHash
	if hash == "" {
		sum := md5.Sum([]byte(u.Email))
		hash = hex.EncodeToString(sum[:])
	}
	return fmt.Sprintf("%s/%s?s=%d&d=identicon&r=g", base, hash, size)
}

// isSecureRequest also trusts X-Forwarded-Proto from the reverse proxy.
func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
