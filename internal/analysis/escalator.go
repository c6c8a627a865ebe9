package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"ipsentry/internal/alert"
	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

const autoBlockDuration = 24 * time.Hour

// EscalateOutcome reports what Escalate did.
type EscalateOutcome int

const (
	Blocked EscalateOutcome = iota
	AlreadyBlocked
)

// Escalator is the single path through which the rule engine creates blocks.
// The engine never writes BlockEntry rows itself; every auto-block funnels
// through here so blocking and alerting stay in one place.
type Escalator struct {
	alerts alert.Sender
	now    func() time.Time
}

func NewEscalator(alerts alert.Sender) *Escalator {
	if alerts == nil {
		alerts = alert.LogSender{}
	}
	return &Escalator{alerts: alerts, now: time.Now}
}

// Escalate creates a 24h temporary block for the IP unless one already
// exists. The reason is prefixed so auto-blocks are distinguishable from
// manual ones, and the matching suspicion record is marked auto_blocked.
func (e *Escalator) Escalate(ctx context.Context, ip, reason string, evidence domain.EvidenceMap) (EscalateOutcome, error) {
	exists, err := database.BlockExists(ctx, ip)
	if err != nil {
		return AlreadyBlocked, err
	}
	if exists {
		return AlreadyBlocked, nil
	}

	expiresAt := e.now().Add(autoBlockDuration)
	entry := domain.BlockEntry{
		IP:        ip,
		Reason:    fmt.Sprintf("Auto-blocked: %s", reason),
		ExpiresAt: &expiresAt,
	}
	if err := database.UpsertBlockEntry(ctx, &entry); err != nil {
		return AlreadyBlocked, err
	}

	if err := database.MarkSuspicionAutoBlocked(ctx, ip, reason); err != nil {
		log.Warn("Failed to mark suspicion auto-blocked", "ip", ip, "reason", reason, "error", err)
	}

	log.Info("Auto-blocked IP", "ip", ip, "reason", reason, "expires_at", expiresAt)

	e.alerts.Send(
		fmt.Sprintf("IP Auto-blocked: %s", ip),
		escalationBody(ip, reason, expiresAt, evidence),
	)

	return Blocked, nil
}

func escalationBody(ip, reason string, expiresAt time.Time, evidence domain.EvidenceMap) string {
	var b strings.Builder

	fmt.Fprintf(&b, "IP %s has been automatically blocked.\nReason: %s\nExpires: %s\n",
		ip, reason, expiresAt.Format("2006-01-02 15:04:05"))

	if len(evidence) > 0 {
		b.WriteString("\nEvidence:\n")
		keys := make([]string, 0, len(evidence))
		for key := range evidence {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", key, evidence[key])
		}
	}

	return b.String()
}
