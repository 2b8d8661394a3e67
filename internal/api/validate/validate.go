package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
)

// Username must be lowercase letters, digits, underscore or dot, 1-30 chars.
var usernameRx = regexp.MustCompile(`^[a-z0-9_.]{1,30}$`)

// phoneRx is E.164: a plus sign followed by 7-15 digits.
var phoneRx = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// groupNameRx allows letters, digits, single spaces and hyphens.
var groupNameRx = regexp.MustCompile(`^[A-Za-z0-9\- ]+$`)

// reactionTypes is the closed set of reaction identifiers clients may send.
var reactionTypes = map[string]bool{
	"heart": true,
	"laugh": true,
	"wow":   true,
	"sad":   true,
	"hug":   true,
	"fire":  true,
}

const (
	maxBodyLen    = 2000
	maxCommentLen = 1000
)

func Username(v string) error {
	if v == "" {
		return fmt.Errorf("username is required")
	}
	if !usernameRx.MatchString(v) {
		return fmt.Errorf("username must match %s", usernameRx.String())
	}
	return nil
}

func Phone(v string) error {
	if v == "" {
		return fmt.Errorf("phone is required")
	}
	if !phoneRx.MatchString(v) {
		return fmt.Errorf("phone must be E.164, like +15551234567")
	}
	return nil
}

func Timezone(v string) error {
	if v == "" {
		return fmt.Errorf("timezone is required")
	}
	if _, err := time.LoadLocation(v); err != nil {
		return fmt.Errorf("timezone must be an IANA zone name")
	}
	return nil
}

// GroupName validates a group display name:
// - 1-50 bytes
// - letters, digits, spaces, hyphens
// - no leading/trailing or doubled spaces
func GroupName(v string) error {
	if v == "" {
		return fmt.Errorf("name is required")
	}
	if len(v) > 50 {
		return fmt.Errorf("name exceeds 50 characters")
	}
	if !groupNameRx.MatchString(v) {
		return fmt.Errorf("name contains invalid characters; allowed letters, digits, space, hyphen")
	}
	if strings.HasPrefix(v, " ") || strings.HasSuffix(v, " ") || strings.Contains(v, "  ") {
		return fmt.Errorf("name has stray spaces")
	}
	return nil
}

func ReactionType(v string) error {
	if v == "" {
		return fmt.Errorf("reaction type is required")
	}
	if !reactionTypes[v] {
		return fmt.Errorf("unknown reaction type %q", v)
	}
	return nil
}

func NotifyMode(v string) error {
	switch v {
	case model.NotifyAll, model.NotifySilent, model.NotifyNone:
		return nil
	}
	return fmt.Errorf("notifyMode must be one of all, silent, none")
}

func Weekday(v int) error {
	if v < 0 || v > 6 {
		return fmt.Errorf("nudgeWeekday must be 0 (Sunday) through 6 (Saturday)")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func MaxLen(field, v string, limit int) error {
	if len(v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// -------- Request specific helpers ----------

// ProfileFields validates the caller-editable profile fields. Shared by the
// create and edit paths; phone is optional on both.
func ProfileFields(username, name, phone, timezone string) error {
	if err := Username(username); err != nil {
		return err
	}
	if err := NonEmpty("name", name); err != nil {
		return err
	}
	if err := MaxLen("name", name, 100); err != nil {
		return err
	}
	if phone != "" {
		if err := Phone(phone); err != nil {
			return err
		}
	}
	return Timezone(timezone)
}

func Settings(notifyMode string, nudgeWeekday int) error {
	if err := NotifyMode(notifyMode); err != nil {
		return err
	}
	return Weekday(nudgeWeekday)
}

func CreateUpdate(body, emoji string) error {
	if err := NonEmpty("body", body); err != nil {
		return err
	}
	if err := MaxLen("body", body, maxBodyLen); err != nil {
		return err
	}
	return MaxLen("emoji", emoji, 16)
}

func CreateComment(body string) error {
	if err := NonEmpty("body", body); err != nil {
		return err
	}
	return MaxLen("body", body, maxCommentLen)
}

func CreateGroup(name string, memberIDs []string) error {
	if err := GroupName(name); err != nil {
		return err
	}
	if len(memberIDs) == 0 {
		return fmt.Errorf("members is required")
	}
	return nil
}
