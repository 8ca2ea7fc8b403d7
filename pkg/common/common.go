package common

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cast"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	snowflakeNode *snowflake.Node
	snowflakeOnce sync.Once
)

func node() *snowflake.Node {
	snowflakeOnce.Do(func() {
		nodeid := cast.ToInt64(os.Getenv("SVCMON_NODE_ID"))
		if nodeid <= 0 || nodeid > 1023 {
			nodeid = 1
		}
		var err error
		snowflakeNode, err = snowflake.NewNode(nodeid)
		if err != nil {
			panic(err)
		}
	})
	return snowflakeNode
}

// UUIDint64 returns a new snowflake id
func UUIDint64() int64 {
	return node().Generate().Int64()
}

// UUID returns a new snowflake id in base58 form, used for check trace ids
func UUID() string {
	return node().Generate().Base58()
}

// Sha256HashWithSalt hash pwd with salt
func Sha256HashWithSalt(src string, salt string) string {
	h := sha256.New()
	h.Write([]byte(src + salt))
	return hex.EncodeToString(h.Sum(nil))
}

// GetSecretSalt reads the local secret salt, falling back to the app id
func GetSecretSalt() string {
	if v := os.Getenv("SVCMON_SECRET"); v != "" {
		return v
	}
	return "svcmon"
}

// TruncateString caps s at max characters, preserving the head
func TruncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// IfEmptyStr returns defval when src is empty
func IfEmptyStr(src string, defval string) string {
	if src == "" {
		return defval
	}
	return src
}

// FmtSegment renders a segment name for log messages, "all" when unset
func FmtSegment(segment string) string {
	if segment == "" {
		return "all"
	}
	return segment
}
