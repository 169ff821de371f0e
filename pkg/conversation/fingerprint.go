package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/difygate/difygate/pkg/api"
)

// fallbackMessageLimit bounds how many leading messages feed the
// fingerprint when no system or user message exists.
const fallbackMessageLimit = 4

// fallbackContentLimit truncates message content in the fallback feature
// list so degenerate histories cannot produce unbounded feature strings.
const fallbackContentLimit = 50

// Fingerprint derives a deterministic identity for a conversation from its
// message history and user id. The identity depends only on the system
// message content (if any), the first user message content (if any), and
// the user id; assistant turns and message order beyond first occurrence
// never influence it, so every turn of the same conversation hashes to the
// same value.
//
// When the history carries neither a system nor a user message, up to the
// first four messages contribute "{role}:{content}" features with content
// truncated to 50 characters.
//
// An empty history with an empty user still yields a valid, constant
// fingerprint. Callers must not treat that degenerate identity as shared
// state across unrelated users.
func Fingerprint(messages []api.Message, user string) string {
	var features []string

	for _, msg := range messages {
		if msg.Role == api.RoleSystem {
			features = append(features, "system:"+msg.Content)
			break
		}
	}

	for _, msg := range messages {
		if msg.Role == api.RoleUser {
			features = append(features, "first_user:"+msg.Content)
			break
		}
	}

	// No usable features: fall back to the leading messages.
	if len(features) == 0 {
		for i, msg := range messages {
			if i >= fallbackMessageLimit {
				break
			}
			features = append(features, msg.Role+":"+truncateRunes(msg.Content, fallbackContentLimit))
		}
	}

	feature := strings.Join(features, "||") + "||user:" + user

	sum := sha256.Sum256([]byte(feature))
	return hex.EncodeToString(sum[:])
}

// truncateRunes limits s to n runes without splitting a multi-byte character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
