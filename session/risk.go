// api/session/risk.go
package session

import (
	"net"
	"time"

	"github.com/dev-mohitbeniwal/warden/api/model"
)

// privateRanges are the source networks considered trusted for risk scoring.
var privateRanges = mustParseCIDRs([]string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
})

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets = append(nets, ipNet)
	}
	return nets
}

func isPrivateIP(sourceIP string) bool {
	ip := net.ParseIP(sourceIP)
	if ip == nil {
		return false
	}
	for _, ipNet := range privateRanges {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// computeRiskScore produces the [0,1] session risk heuristic from a weighted,
// saturating sum of factors. The decision engine compares the result against
// fixed thresholds, so the weights must stay stable.
func computeRiskScore(user model.User, sourceIP string, now time.Time) float64 {
	score := 0.0

	if user.FailedAttempts > 0 {
		score += 0.1 * float64(user.FailedAttempts)
	}

	if user.LastLoginAt != nil && now.Sub(*user.LastLoginAt) > 30*24*time.Hour {
		score += 0.2
	}

	if isPrivateIP(sourceIP) {
		score -= 0.1
	} else {
		score += 0.1
	}

	if user.CurrentTier >= model.TierPrivileged {
		score += 0.2
	}

	if !user.IdentityVerified {
		score += 0.3
	}

	if !user.ExternalClearance {
		score += 0.5
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
