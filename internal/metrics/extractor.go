package metrics

import (
	"regexp"
	"sort"
	"strings"

	"madad/internal/clickup"
)

// AutomationUserID is the reserved user ID of the workflow bot.
const AutomationUserID = -1

// depositRule is one named phrasing of a deposit-paid confirmation.
// New locales or phrasings are added here, not in control flow.
type depositRule struct {
	name  string
	match func(text string) bool
}

var (
	hebrewDepositRoots = []string{"מקדמה", "מקדמת"}
	hebrewPaidRoots    = []string{"שולמה", "שולם", "שילמה", "שילם"}

	depositRules = []depositRule{
		{
			name: "he-deposit-paid",
			match: func(text string) bool {
				return containsAny(text, hebrewDepositRoots) && containsAny(text, hebrewPaidRoots)
			},
		},
		{
			name: "en-deposit-paid",
			match: func(text string) bool {
				return containsAny(text, []string{"deposit", "advance"}) &&
					containsAny(text, []string{"paid", "received"})
			},
		},
	}

	statusChangeRe = regexp.MustCompile(`(?i)status\s+has\s+changed\s+to\s*:?\s*(.+)`)
)

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// Extractor turns a task's comment list into typed business events.
type Extractor struct {
	vocab Vocabulary
}

func NewExtractor(vocab Vocabulary) *Extractor {
	return &Extractor{vocab: vocab}
}

// isAutomationComment reports whether a comment is attributable to the
// workflow bot: reserved user ID or the reserved bot name.
func (e *Extractor) isAutomationComment(c clickup.Comment) bool {
	if c.User == nil {
		return false
	}
	if c.User.ID == AutomationUserID {
		return true
	}
	return sameText(c.User.Username, e.vocab.AutomationBotName)
}

// DepositPaidMs returns the timestamp of the first deposit-paid
// confirmation among the comments. Manual comments count; the earliest
// match wins so repeated confirmations never double-count a payment.
func (e *Extractor) DepositPaidMs(comments []clickup.Comment) (int64, bool) {
	var earliest int64
	found := false
	for _, c := range comments {
		text := strings.ToLower(c.CommentText)
		matched := false
		for _, rule := range depositRules {
			if rule.match(text) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		ts := c.TimestampMs()
		if !found || ts < earliest {
			earliest = ts
			found = true
		}
	}
	return earliest, found
}

type statusChange struct {
	target string
	ms     int64
}

// statusChanges reconstructs the automation status history of a task,
// sorted ascending by comment timestamp (not insertion order).
func (e *Extractor) statusChanges(comments []clickup.Comment) []statusChange {
	var changes []statusChange
	for _, c := range comments {
		if !e.isAutomationComment(c) {
			continue
		}
		target, ok := e.statusChangeTarget(c.CommentText)
		if !ok {
			continue
		}
		changes = append(changes, statusChange{target: target, ms: c.TimestampMs()})
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].ms < changes[j].ms })
	return changes
}

// statusChangeTarget extracts the target status from an automation
// comment. A comment containing the tokens "status", "changed" and
// "done" counts as a change to Done even without the canonical pattern.
func (e *Extractor) statusChangeTarget(text string) (string, bool) {
	if m := statusChangeRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "status") && strings.Contains(lower, "changed") && strings.Contains(lower, "done") {
		return e.vocab.StatusDone, true
	}
	return "", false
}

// FirstStatusChangeMs returns the first time the task reached the target
// status, so later reversions and re-entries do not inflate revenue.
func (e *Extractor) FirstStatusChangeMs(comments []clickup.Comment, target string) (int64, bool) {
	for _, ch := range e.statusChanges(comments) {
		if sameText(ch.target, target) {
			return ch.ms, true
		}
	}
	return 0, false
}

// FirstDoneMs is FirstStatusChangeMs for the Done status.
func (e *Extractor) FirstDoneMs(comments []clickup.Comment) (int64, bool) {
	return e.FirstStatusChangeMs(comments, e.vocab.StatusDone)
}

// ClosedWonMoveMs returns the timestamp of the automation comment that
// moved a closed-won deal into the event calendar. The latest match wins:
// the final confirmed move is authoritative over earlier duplicate firings.
func (e *Extractor) ClosedWonMoveMs(comments []clickup.Comment) (int64, bool) {
	var latest int64
	found := false
	for _, c := range comments {
		if !e.isAutomationComment(c) {
			continue
		}
		lower := strings.ToLower(c.CommentText)
		if !strings.Contains(lower, "moved to event calendar") || !strings.Contains(lower, "closed won") {
			continue
		}
		ts := c.TimestampMs()
		if !found || ts > latest {
			latest = ts
			found = true
		}
	}
	return latest, found
}

// FirstBillingToDoneMs scans the chronological status history for the
// first Done that occurs after Billing has been seen. Intermediate
// targets between the two do not reset the Billing flag.
func (e *Extractor) FirstBillingToDoneMs(comments []clickup.Comment) (int64, bool) {
	billingSeen := false
	for _, ch := range e.statusChanges(comments) {
		switch {
		case sameText(ch.target, e.vocab.StatusBilling):
			billingSeen = true
		case billingSeen && sameText(ch.target, e.vocab.StatusDone):
			return ch.ms, true
		}
	}
	return 0, false
}
