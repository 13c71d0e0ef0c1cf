package risk

import "fmt"

type Violation struct {
	Code string
	Msg  string
}

// Decision carries the verdict plus the numbers it was based on, so
// the session can log why an entry was blocked.
type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64 // dollars lost if the stop fills exactly
	PlannedRiskPct float64
	Notional       float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate applies every limit in the policy to one planned entry.
// All violations are collected rather than returning on the first, so
// a blocked trade logs its full story.
func Evaluate(p Policy, in Intent, acct Snapshot) Decision {
	d := Decision{Allowed: true}

	if in.Shares <= 0 {
		d.add("SHARES", fmt.Sprintf("share count %d is not positive", in.Shares))
		return d
	}
	if in.Stop >= in.Entry {
		d.add("STOP_SIDE", fmt.Sprintf("stop %.4f not below entry %.4f", in.Stop, in.Entry))
		return d
	}

	d.PlannedRisk = (in.Entry - in.Stop) * float64(in.Shares)
	d.Notional = in.Entry * float64(in.Shares)
	if acct.Equity > 0 {
		d.PlannedRiskPct = d.PlannedRisk / acct.Equity
	}

	if p.MinStopDistance > 0 && in.Entry-in.Stop < p.MinStopDistance {
		d.add("STOP_DISTANCE", fmt.Sprintf("stop distance %.4f under minimum %.4f",
			in.Entry-in.Stop, p.MinStopDistance))
	}
	if p.MaxRiskPct > 0 && acct.Equity > 0 && d.PlannedRiskPct > p.MaxRiskPct {
		d.add("RISK_PCT", fmt.Sprintf("planned risk %.2f%% over limit %.2f%%",
			d.PlannedRiskPct*100, p.MaxRiskPct*100))
	}
	if p.MaxNotionalPct > 0 && acct.BuyingPower > 0 && d.Notional > p.MaxNotionalPct*acct.BuyingPower {
		d.add("NOTIONAL", fmt.Sprintf("notional %.2f over %.0f%% of buying power %.2f",
			d.Notional, p.MaxNotionalPct*100, acct.BuyingPower))
	}
	if p.MaxOpenPositions > 0 && acct.OpenPositions >= p.MaxOpenPositions {
		d.add("MAX_OPEN", fmt.Sprintf("%d positions already working, limit %d",
			acct.OpenPositions, p.MaxOpenPositions))
	}
	return d
}
